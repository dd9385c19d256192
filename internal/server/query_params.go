package server

import (
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"github.com/smallbiznis/hmsinsure/pkg/db/pagination"
)

func parseSnowflakeID(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, newValidationError("id", "required", "id is required")
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed == 0 {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return parsed, nil
}

func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := parseSnowflakeID(c.Param(name))
	if err != nil {
		return 0, newValidationError(name, "invalid_id", "invalid id")
	}
	return id, nil
}

// providerPath reads the provider and company path parameters. Company
// names carry spaces, so the raw segment is unescaped first.
func providerPath(c *gin.Context) (providerdomain.Provider, string, error) {
	provider, err := providerdomain.ParseProvider(c.Param("provider"))
	if err != nil {
		return "", "", newValidationError("provider", "invalid_provider", "unknown provider")
	}
	company, err := url.PathUnescape(c.Param("company"))
	if err != nil {
		company = c.Param("company")
	}
	company = strings.TrimSpace(company)
	if company == "" {
		return "", "", newValidationError("company", "required", "company is required")
	}
	return provider, company, nil
}

func bindPagination(c *gin.Context) (pagination.Pagination, error) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		return page, invalidRequestError()
	}
	if page.PageSize < 1 || page.PageSize > 250 {
		return page, newValidationError("page_size", "invalid_page_size", "page_size must be between 1 and 250")
	}
	return page, nil
}
