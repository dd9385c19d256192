package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/hmsinsure/internal/audit/domain"
	"github.com/smallbiznis/hmsinsure/internal/audit/masking"
	obslogger "github.com/smallbiznis/hmsinsure/internal/observability/logger"
	logdomain "github.com/smallbiznis/hmsinsure/internal/responselog/domain"
	"github.com/smallbiznis/hmsinsure/internal/syncjob"
	"go.uber.org/zap"
)

type processRequest struct {
	Plan string `json:"plan"`
}

func (s *Server) EnqueueProviderSync(c *gin.Context) {
	provider, company, err := providerPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	job, err := s.syncs.EnqueueSync(c.Request.Context(), syncjob.Args{Provider: provider.String(), Company: company})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	obslogger.WithContext(c.Request.Context(), s.log).Info("provider sync enqueued",
		zap.String("provider", provider.String()),
		zap.String("company", company),
		zap.String("job_id", job.ID),
	)
	s.audit(c, auditdomain.Entry{
		Company:    company,
		Action:     auditdomain.ActionProviderSync,
		TargetType: "job",
		TargetID:   job.ID,
		Metadata:   map[string]any{"provider": provider.String()},
	})
	c.JSON(http.StatusAccepted, gin.H{"data": job})
}

// EnqueueProviderProcess reruns coverage materialization and the price list
// sync against the packages already stored. The body is optional.
func (s *Server) EnqueueProviderProcess(c *gin.Context) {
	provider, company, err := providerPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req processRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	jobs, err := s.syncs.EnqueueProcess(c.Request.Context(), syncjob.Args{
		Provider: provider.String(),
		Company:  company,
		Plan:     strings.TrimSpace(req.Plan),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	jobIDs := make([]string, 0, len(jobs))
	for _, job := range jobs {
		jobIDs = append(jobIDs, job.ID)
	}
	s.audit(c, auditdomain.Entry{
		Company:    company,
		Action:     auditdomain.ActionProviderProcess,
		TargetType: "job",
		Metadata:   map[string]any{"provider": provider.String(), "jobs": jobIDs},
	})
	c.JSON(http.StatusAccepted, gin.H{"data": jobs})
}

func (s *Server) ListPricePackages(c *gin.Context) {
	provider, company, err := providerPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	packages, err := s.packageSvc.ListPackages(c.Request.Context(), provider, company)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": packages})
}

func (s *Server) ListExcludedServices(c *gin.Context) {
	provider, company, err := providerPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	excluded, err := s.packageSvc.ListExcluded(c.Request.Context(), provider, company)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": excluded})
}

func (s *Server) ListPackageUpdates(c *gin.Context) {
	provider, company, err := providerPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	updates, err := s.packageSvc.ListUpdates(c.Request.Context(), provider, company)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updates})
}

// PreviewPackageDiff compares the two latest stored snapshots without
// recording an update.
func (s *Server) PreviewPackageDiff(c *gin.Context) {
	provider, company, err := providerPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	update, err := s.packageSvc.PreviewDiff(c.Request.Context(), provider, company)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": update})
}

func (s *Server) ListResponseLogs(c *gin.Context) {
	provider, company, err := providerPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	requestType := strings.TrimSpace(c.Query("request_type"))
	if requestType == "" {
		AbortWithError(c, newValidationError("request_type", "required", "request_type is required"))
		return
	}

	logs, err := s.logSvc.Latest(c.Request.Context(), provider.String(), company, requestType, page.PageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if logs == nil {
		logs = []logdomain.ResponseLog{}
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}

func (s *Server) GetCardDetails(c *gin.Context) {
	provider, company, err := providerPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	verifier, err := s.cards.CardVerifier(provider)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	cardNo := c.Param("card_no")
	details, err := verifier.GetCardDetails(c.Request.Context(), company, cardNo)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.audit(c, auditdomain.Entry{
		Company:    company,
		Action:     auditdomain.ActionCardLookup,
		TargetType: "card",
		TargetID:   masking.MaskCardNo(cardNo),
		Metadata:   map[string]any{"provider": provider.String()},
	})
	c.JSON(http.StatusOK, gin.H{"data": details})
}
