package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/hmsinsure/internal/apikey/domain"
	obscontext "github.com/smallbiznis/hmsinsure/internal/observability/context"
)

const (
	contextAPIKeyKey = "api_key"
	contextRoleKey   = "actor_role"
)

// APIKeyRequired authenticates requests with a bearer API key. The key's
// role and company scope travel with the request context.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, err := s.apiKeySvc.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), key.Role, key.KeyID)
		if key.Company != "" {
			ctx = obscontext.WithCompany(ctx, key.Company)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextAPIKeyKey, key)
		c.Set(contextRoleKey, key.Role)
		c.Next()
	}
}

// CompanyScope rejects path companies outside the key's company.
func (s *Server) CompanyScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.checkCompany(c, c.Param("company")); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(contextRoleKey)
		if role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func apiKeyFromContext(c *gin.Context) *apikeydomain.APIKey {
	v, ok := c.Get(contextAPIKeyKey)
	if !ok {
		return nil
	}
	key, _ := v.(*apikeydomain.APIKey)
	return key
}

// checkCompany fails with ErrForbidden when the calling key is scoped to a
// different company. Unscoped keys reach every company.
func (s *Server) checkCompany(c *gin.Context, company string) error {
	key := apiKeyFromContext(c)
	if key == nil {
		return ErrUnauthorized
	}
	if key.Company == "" {
		return nil
	}
	if !strings.EqualFold(strings.TrimSpace(company), key.Company) {
		return ErrForbidden
	}
	return nil
}

// actorID names the caller in audit columns such as submitted_by.
func actorID(c *gin.Context) string {
	key := apiKeyFromContext(c)
	if key == nil {
		return ""
	}
	if key.Name != "" {
		return key.Name
	}
	return key.KeyID
}
