package domain

import (
	"context"
	"errors"
	"time"

	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
)

type Service interface {
	// Materialize regenerates auto generated coverages of the active plans of
	// provider and company, or of planName only when given.
	Materialize(ctx context.Context, provider providerdomain.Provider, company, planName string) (*MaterializeResult, error)
	ListCoverages(ctx context.Context, planName string) ([]Coverage, error)
	CreateManual(ctx context.Context, req CreateCoverageRequest) (*Coverage, error)

	CreatePlan(ctx context.Context, req CreatePlanRequest) (*Plan, error)
	RegisterTemplate(ctx context.Context, req RegisterTemplateRequest) (*ServiceTemplate, error)
	RegisterItemReference(ctx context.Context, req RegisterItemReferenceRequest) (*ItemReference, error)
}

type MaterializeResult struct {
	Provider string       `json:"provider"`
	Company  string       `json:"company"`
	Plans    []PlanResult `json:"plans"`
}

type PlanResult struct {
	Plan     string `json:"plan"`
	Deleted  int64  `json:"deleted"`
	Inserted int    `json:"inserted"`
	Excluded int    `json:"excluded"`
	Skipped  int    `json:"skipped"`
}

type CreateCoverageRequest struct {
	PlanName           string      `json:"plan" validate:"required"`
	ServiceType        ServiceType `json:"service_type" validate:"required"`
	TemplateName       string      `json:"template" validate:"required"`
	Coverage           float64     `json:"coverage" validate:"gte=0,lte=100"`
	Discount           float64     `json:"discount" validate:"gte=0,lte=100"`
	StartDate          time.Time   `json:"start_date" validate:"required"`
	EndDate            time.Time   `json:"end_date" validate:"required,gtfield=StartDate"`
	ApprovalMandatory  bool        `json:"approval_mandatory_for_claim"`
	ManualApprovalOnly bool        `json:"manual_approval_only"`
	MaximumClaims      int         `json:"maximum_number_of_claims" validate:"gte=0"`
}

type CreatePlanRequest struct {
	Name     string `json:"name" validate:"required"`
	Company  string `json:"company" validate:"required"`
	Provider string `json:"provider" validate:"required"`
	SchemeID string `json:"scheme_id"`
	IsActive *bool  `json:"is_active"`
}

type RegisterTemplateRequest struct {
	ServiceType ServiceType `json:"service_type" validate:"required"`
	Name        string      `json:"name" validate:"required"`
	ItemCode    string      `json:"item_code" validate:"required"`
	Disabled    bool        `json:"disabled"`
}

type RegisterItemReferenceRequest struct {
	ItemCode string `json:"item_code" validate:"required"`
	Provider string `json:"provider" validate:"required"`
	RefCode  string `json:"ref_code" validate:"required"`
}

var (
	ErrNoActivePlan       = errors.New("no_active_coverage_plan")
	ErrPlanNotFound       = errors.New("coverage_plan_not_found")
	ErrPlanExists         = errors.New("coverage_plan_exists")
	ErrInvalidCompany     = errors.New("invalid_company")
	ErrInvalidServiceType = errors.New("invalid_service_type")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrDuplicate          = errors.New("duplicate_record")
)
