package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/hmsinsure/pkg/db/pagination"
)

// Entry is one audited action. Actor and company default to the values
// carried by ctx.
type Entry struct {
	Company    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Company    string
	Action     string
	TargetType string
	TargetID   string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

const (
	ActionClaimCreated      = "claim.created"
	ActionClaimValidated    = "claim.validated"
	ActionClaimSubmitted    = "claim.submitted"
	ActionClaimReconciled   = "claim.items_reconciled"
	ActionNoteValidated     = "delivery_note.validated"
	ActionNoteItemRestocked = "delivery_note.item_in_stock"
	ActionNoteSubmitted     = "delivery_note.submitted"
	ActionProviderSync      = "provider_sync.enqueued"
	ActionProviderProcess   = "provider_process.enqueued"
	ActionCardLookup        = "card.looked_up"
	ActionAPIKeyCreated     = "api_key.created"
	ActionAPIKeyRotated     = "api_key.rotated"
	ActionAPIKeyRevoked     = "api_key.revoked"
)

var (
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidAction    = errors.New("invalid_action")
)
