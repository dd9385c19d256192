package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/hmsinsure/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/hmsinsure/internal/audit/domain"
	obslogger "github.com/smallbiznis/hmsinsure/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Server) ListAPIKeys(c *gin.Context) {
	keys, err := s.apiKeySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": keys})
}

func (s *Server) CreateAPIKey(c *gin.Context) {
	var req apikeydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.apiKeySvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	obslogger.WithContext(c.Request.Context(), s.log).Info("api key created",
		zap.String("key_id", resp.KeyID),
		zap.String("role", req.Role),
		zap.String("actor", actorID(c)),
	)
	s.audit(c, auditdomain.Entry{
		Company:    req.Company,
		Action:     auditdomain.ActionAPIKeyCreated,
		TargetType: "api_key",
		TargetID:   resp.KeyID,
		Metadata:   map[string]any{"name": req.Name, "role": req.Role},
	})
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) RotateAPIKey(c *gin.Context) {
	keyID := strings.TrimSpace(c.Param("key_id"))
	resp, err := s.apiKeySvc.Rotate(c.Request.Context(), keyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	obslogger.WithContext(c.Request.Context(), s.log).Info("api key rotated",
		zap.String("key_id", keyID),
		zap.String("new_key_id", resp.KeyID),
	)
	s.audit(c, auditdomain.Entry{
		Action:     auditdomain.ActionAPIKeyRotated,
		TargetType: "api_key",
		TargetID:   keyID,
		Metadata:   map[string]any{"new_key_id": resp.KeyID},
	})
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RevokeAPIKey(c *gin.Context) {
	keyID := strings.TrimSpace(c.Param("key_id"))
	if err := s.apiKeySvc.Revoke(c.Request.Context(), keyID); err != nil {
		AbortWithError(c, err)
		return
	}

	obslogger.WithContext(c.Request.Context(), s.log).Info("api key revoked", zap.String("key_id", keyID))
	s.audit(c, auditdomain.Entry{Action: auditdomain.ActionAPIKeyRevoked, TargetType: "api_key", TargetID: keyID})
	c.Status(http.StatusNoContent)
}
