package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ServiceType names the kind of healthcare service a template bills for.
type ServiceType string

const (
	AppointmentType       ServiceType = "Appointment Type"
	LabTestTemplate       ServiceType = "Lab Test Template"
	RadiologyExamination  ServiceType = "Radiology Examination Template"
	ClinicalProcedure     ServiceType = "Clinical Procedure Template"
	Medication            ServiceType = "Medication"
	TherapyType           ServiceType = "Therapy Type"
	HealthcareServiceUnit ServiceType = "Healthcare Service Unit Type"
)

func (t ServiceType) Valid() bool {
	switch t {
	case AppointmentType, LabTestTemplate, RadiologyExamination, ClinicalProcedure,
		Medication, TherapyType, HealthcareServiceUnit:
		return true
	default:
		return false
	}
}

// Plan is an insurance coverage plan offered by a provider to a company.
type Plan struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null;uniqueIndex"`
	Company   string       `json:"company" gorm:"type:text;not null;index:idx_coverage_plans_owner,priority:2"`
	Provider  string       `json:"provider" gorm:"type:text;not null;index:idx_coverage_plans_owner,priority:1"`
	SchemeID  string       `json:"scheme_id,omitempty" gorm:"type:text"`
	IsActive  bool         `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Plan) TableName() string { return "coverage_plans" }

// ServiceTemplate links a billable item to the healthcare service it represents.
type ServiceTemplate struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	ServiceType ServiceType  `json:"service_type" gorm:"type:text;not null;uniqueIndex:ux_service_templates_name,priority:1"`
	Name        string       `json:"name" gorm:"type:text;not null;uniqueIndex:ux_service_templates_name,priority:2"`
	ItemCode    string       `json:"item_code" gorm:"type:text;not null;index"`
	Disabled    bool         `json:"disabled" gorm:"not null;default:false"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
}

func (ServiceTemplate) TableName() string { return "service_templates" }

// ItemReference maps a local item code to the provider's item code.
type ItemReference struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	ItemCode  string       `json:"item_code" gorm:"type:text;not null;uniqueIndex:ux_item_references,priority:2"`
	Provider  string       `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_item_references,priority:1"`
	RefCode   string       `json:"ref_code" gorm:"type:text;not null;uniqueIndex:ux_item_references,priority:3"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (ItemReference) TableName() string { return "item_references" }

// Coverage says how much of a service a plan pays. Auto generated rows are
// owned by the materializer; manual rows are never touched by it.
type Coverage struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey"`
	Company            string       `json:"company" gorm:"type:text;not null"`
	PlanName           string       `json:"plan" gorm:"column:plan_name;type:text;not null;index:idx_coverages_plan,priority:1"`
	ServiceType        ServiceType  `json:"service_type" gorm:"type:text;not null"`
	TemplateName       string       `json:"template" gorm:"column:template_name;type:text;not null"`
	Coverage           float64      `json:"coverage" gorm:"type:numeric;not null;default:100"`
	Discount           float64      `json:"discount" gorm:"type:numeric;not null;default:0"`
	StartDate          time.Time    `json:"start_date" gorm:"type:date;not null"`
	EndDate            time.Time    `json:"end_date" gorm:"type:date;not null"`
	IsActive           bool         `json:"is_active" gorm:"not null;default:true"`
	IsAutoGenerated    bool         `json:"is_auto_generated" gorm:"not null;default:false;index:idx_coverages_plan,priority:2"`
	ApprovalMandatory  bool         `json:"approval_mandatory_for_claim" gorm:"not null;default:false"`
	ManualApprovalOnly bool         `json:"manual_approval_only" gorm:"not null;default:false"`
	MaximumClaims      int          `json:"maximum_number_of_claims" gorm:"not null;default:0"`
	CreatedAt          time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time    `json:"updated_at" gorm:"not null"`
}

func (Coverage) TableName() string { return "coverages" }

// CoverageItem is a template whose item is priced by the provider.
type CoverageItem struct {
	ServiceType  ServiceType
	TemplateName string
	ItemCode     string
	RefCode      string
}
