package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/hmsinsure/internal/audit/domain"
	"github.com/smallbiznis/hmsinsure/internal/claimmetrics"
	deliverynotedomain "github.com/smallbiznis/hmsinsure/internal/deliverynote/domain"
)

func (s *Server) CreateDeliveryNote(c *gin.Context) {
	var req deliverynotedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.checkCompany(c, req.Company); err != nil {
		AbortWithError(c, err)
		return
	}

	note, err := s.noteSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": note})
}

func (s *Server) GetDeliveryNote(c *gin.Context) {
	note, ok := s.scopedNote(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": note})
}

func (s *Server) ValidateDeliveryNote(c *gin.Context) {
	note, ok := s.scopedNote(c)
	if !ok {
		return
	}

	var req deliverynotedomain.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.noteSvc.Validate(c.Request.Context(), note.ID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.audit(c, auditdomain.Entry{
		Company:    note.Company,
		Action:     auditdomain.ActionNoteValidated,
		TargetType: "delivery_note",
		TargetID:   note.ID.String(),
		Metadata:   map[string]any{"removed": result.Removed, "all_out_of_stock": result.AllOutOfStock},
	})
	claimmetrics.RecordOutOfStock(note.Company, result.Removed)
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ConvertDeliveryNoteItem puts an out of stock original item back on the note.
func (s *Server) ConvertDeliveryNoteItem(c *gin.Context) {
	note, ok := s.scopedNote(c)
	if !ok {
		return
	}
	originalID, err := pathID(c, "original_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	updated, err := s.noteSvc.ConvertToInStock(c.Request.Context(), note.ID, originalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.audit(c, auditdomain.Entry{
		Company:    note.Company,
		Action:     auditdomain.ActionNoteItemRestocked,
		TargetType: "delivery_note",
		TargetID:   note.ID.String(),
		Metadata:   map[string]any{"original_item_id": originalID.String()},
	})
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

func (s *Server) SubmitDeliveryNote(c *gin.Context) {
	note, ok := s.scopedNote(c)
	if !ok {
		return
	}

	submitted, err := s.noteSvc.Submit(c.Request.Context(), note.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.audit(c, auditdomain.Entry{
		Company:    note.Company,
		Action:     auditdomain.ActionNoteSubmitted,
		TargetType: "delivery_note",
		TargetID:   note.ID.String(),
	})
	claimmetrics.RecordNoteSubmitted(note.Company)
	c.JSON(http.StatusOK, gin.H{"data": submitted})
}

func (s *Server) scopedNote(c *gin.Context) (*deliverynotedomain.DeliveryNote, bool) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	note, err := s.noteSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if err := s.checkCompany(c, note.Company); err != nil {
		AbortWithError(c, deliverynotedomain.ErrNoteNotFound)
		return nil, false
	}
	return note, true
}
