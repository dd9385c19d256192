package pdf

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Renderer turns claim documents into PDF bytes.
type Renderer interface {
	RenderClaim(ctx context.Context, doc ClaimDocument) ([]byte, error)
}

type ClaimDocument struct {
	ClaimID         string
	Provider        string
	Company         string
	FolioNo         int
	ClaimMonth      int
	ClaimYear       int
	PatientName     string
	CardNo          string
	AuthorizationNo string
	PatientFileNo   string
	AttendanceDate  string
	PatientTypeCode string
	PractitionerNo  string
	Diseases        []ClaimDisease
	Items           []ClaimItem
	Total           float64
}

type ClaimDisease struct {
	Code   string
	Status string
}

type ClaimItem struct {
	ItemCode      string
	Description   string
	Quantity      float64
	UnitPrice     float64
	Amount        float64
	ApprovalRefNo string
}

// Rendered is one successful result of RenderBatch.
type Rendered struct {
	ClaimID string
	PDF     []byte
}

type MarotoRenderer struct {
	log *zap.Logger
}

func New(log *zap.Logger) *MarotoRenderer {
	return &MarotoRenderer{log: log.Named("pdf.renderer")}
}

var Module = fx.Module("pdf",
	fx.Provide(
		New,
		func(r *MarotoRenderer) Renderer { return r },
	),
)
