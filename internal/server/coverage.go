package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	coveragedomain "github.com/smallbiznis/hmsinsure/internal/coverage/domain"
)

func (s *Server) CreateCoveragePlan(c *gin.Context) {
	var req coveragedomain.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.checkCompany(c, req.Company); err != nil {
		AbortWithError(c, err)
		return
	}

	plan, err := s.coverageSvc.CreatePlan(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": plan})
}

func (s *Server) ListCoverages(c *gin.Context) {
	coverages, err := s.coverageSvc.ListCoverages(c.Request.Context(), c.Param("plan"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": coverages})
}

// CreateCoverage adds a manual coverage row. Manual rows survive
// materialization.
func (s *Server) CreateCoverage(c *gin.Context) {
	var req coveragedomain.CreateCoverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	coverage, err := s.coverageSvc.CreateManual(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": coverage})
}

func (s *Server) RegisterServiceTemplate(c *gin.Context) {
	var req coveragedomain.RegisterTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	template, err := s.coverageSvc.RegisterTemplate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": template})
}

func (s *Server) RegisterItemReference(c *gin.Context) {
	var req coveragedomain.RegisterItemReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ref, err := s.coverageSvc.RegisterItemReference(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": ref})
}

func (s *Server) ListItemPrices(c *gin.Context) {
	prices, err := s.priceSvc.ListItemPrices(c.Request.Context(), c.Param("price_list"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": prices})
}
