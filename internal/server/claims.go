package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/hmsinsure/internal/audit/domain"
	"github.com/smallbiznis/hmsinsure/internal/claimmetrics"
	claimdomain "github.com/smallbiznis/hmsinsure/internal/claim/domain"
	obslogger "github.com/smallbiznis/hmsinsure/internal/observability/logger"
	"go.uber.org/zap"
)

type addItemsRequest struct {
	Items []claimdomain.ItemInput `json:"items"`
}

type reconcileRequest struct {
	Confirm bool `json:"confirm"`
}

func (s *Server) RegisterAppointment(c *gin.Context) {
	var req claimdomain.RegisterAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.checkCompany(c, req.Company); err != nil {
		AbortWithError(c, err)
		return
	}

	appointment, err := s.claimSvc.RegisterAppointment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": appointment})
}

func (s *Server) CreateClaim(c *gin.Context) {
	var req claimdomain.CreateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.checkCompany(c, req.Company); err != nil {
		AbortWithError(c, err)
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = actorID(c)
	}

	claim, err := s.claimSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.audit(c, auditdomain.Entry{
		Company:    claim.Company,
		Action:     auditdomain.ActionClaimCreated,
		TargetType: "claim",
		TargetID:   claim.ID.String(),
		Metadata:   map[string]any{"provider": claim.Provider, "folio_no": claim.FolioNo},
	})
	c.JSON(http.StatusCreated, gin.H{"data": claim})
}

func (s *Server) GetClaim(c *gin.Context) {
	claim, ok := s.scopedClaim(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": claim})
}

func (s *Server) AddClaimItems(c *gin.Context) {
	claim, ok := s.scopedClaim(c)
	if !ok {
		return
	}

	var req addItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}
	for i := range req.Items {
		if req.Items[i].CreatedBy == "" {
			req.Items[i].CreatedBy = actorID(c)
		}
	}

	updated, err := s.claimSvc.AddItems(c.Request.Context(), claim.ID, req.Items)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

func (s *Server) ValidateClaim(c *gin.Context) {
	claim, ok := s.scopedClaim(c)
	if !ok {
		return
	}

	validated, err := s.claimSvc.Validate(c.Request.Context(), claim.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.audit(c, auditdomain.Entry{
		Company:    claim.Company,
		Action:     auditdomain.ActionClaimValidated,
		TargetType: "claim",
		TargetID:   claim.ID.String(),
	})
	c.JSON(http.StatusOK, gin.H{"data": validated})
}

func (s *Server) SubmitClaim(c *gin.Context) {
	claim, ok := s.scopedClaim(c)
	if !ok {
		return
	}

	submitted, err := s.claimSvc.Submit(c.Request.Context(), claim.ID, actorID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.audit(c, auditdomain.Entry{
		Company:    claim.Company,
		Action:     auditdomain.ActionClaimSubmitted,
		TargetType: "claim",
		TargetID:   claim.ID.String(),
		Metadata:   map[string]any{"submitted_by": actorID(c)},
	})
	claimmetrics.RecordClaimSubmitted(submitted.Company, submitted.Provider, submitted.TotalAmount)
	c.JSON(http.StatusOK, gin.H{"data": submitted})
}

// ReconcileClaimItems merges repeated items. The merged rows are deleted for
// good, so the caller must send {"confirm": true}.
func (s *Server) ReconcileClaimItems(c *gin.Context) {
	claim, ok := s.scopedClaim(c)
	if !ok {
		return
	}

	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if !req.Confirm {
		AbortWithError(c, ErrConfirmRequired)
		return
	}

	result, err := s.claimSvc.ReconcileRepeatedItems(c.Request.Context(), claim.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	obslogger.WithContext(c.Request.Context(), s.log).Info("claim items reconciled",
		zap.String("claim_id", claim.ID.String()),
		zap.Int64("removed", result.Removed),
		zap.String("actor", actorID(c)),
	)
	s.audit(c, auditdomain.Entry{
		Company:    claim.Company,
		Action:     auditdomain.ActionClaimReconciled,
		TargetType: "claim",
		TargetID:   claim.ID.String(),
		Metadata:   map[string]any{"removed": result.Removed},
	})
	claimmetrics.RecordItemsReconciled(claim.Company, result.Removed)
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// scopedClaim loads the claim named by the path and checks it belongs to the
// caller's company. It aborts the request on failure.
func (s *Server) scopedClaim(c *gin.Context) (*claimdomain.Claim, bool) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	claim, err := s.loadClaim(c, id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	return claim, true
}

func (s *Server) loadClaim(c *gin.Context, id snowflake.ID) (*claimdomain.Claim, error) {
	claim, err := s.claimSvc.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCompany(c, claim.Company); err != nil {
		// claims of other companies read as missing
		return nil, claimdomain.ErrClaimNotFound
	}
	return claim, nil
}
