package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusValidated Status = "Validated"
	StatusSubmitted Status = "Submitted"
)

// ItemStatus is the clinical state of the order a claim item bills for.
type ItemStatus string

const (
	ItemDraft     ItemStatus = "Draft"
	ItemSubmitted ItemStatus = "Submitted"
)

// Appointment is the patient visit a claim is raised for.
type Appointment struct {
	ID                  snowflake.ID `json:"id" gorm:"primaryKey"`
	Name                string       `json:"name" gorm:"type:text;not null;uniqueIndex"`
	Patient             string       `json:"patient" gorm:"type:text;not null;index"`
	Provider            string       `json:"provider" gorm:"type:text;not null"`
	Company             string       `json:"company" gorm:"type:text;not null"`
	AuthorizationNumber string       `json:"authorization_number" gorm:"type:text;index"`
	CardNo              string       `json:"card_no" gorm:"type:text"`
	Cancelled           bool         `json:"cancelled" gorm:"not null;default:false"`
	CreatedAt           time.Time    `json:"created_at" gorm:"not null"`
}

func (Appointment) TableName() string { return "claim_appointments" }

type Claim struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	Provider        string       `json:"provider" gorm:"type:text;not null;index:idx_claims_owner,priority:1"`
	Company         string       `json:"company" gorm:"type:text;not null;index:idx_claims_owner,priority:2"`
	Patient         string       `json:"patient" gorm:"type:text;not null;index:idx_claims_patient,priority:1"`
	PatientName     string       `json:"patient_name" gorm:"type:text"`
	FirstName       string       `json:"first_name" gorm:"type:text"`
	LastName        string       `json:"last_name" gorm:"type:text"`
	Gender          string       `json:"gender" gorm:"type:text"`
	DateOfBirth     *time.Time   `json:"date_of_birth,omitempty" gorm:"type:date"`
	TelephoneNo     string       `json:"telephone_no" gorm:"type:text"`
	PatientFileNo   string       `json:"patient_file_no" gorm:"type:text"`
	Appointment     string       `json:"appointment" gorm:"type:text;not null;index:idx_claims_patient,priority:2"`
	AuthorizationNo string       `json:"authorization_no" gorm:"type:text;not null;index"`
	CardNo          string       `json:"card_no" gorm:"type:text;not null"`
	FolioID         string       `json:"folio_id" gorm:"type:text;not null;uniqueIndex"`
	FolioNo         int          `json:"folio_no" gorm:"not null"`
	SerialNo        string       `json:"serial_no" gorm:"type:text"`
	ClaimYear       int          `json:"claim_year" gorm:"not null"`
	ClaimMonth      int          `json:"claim_month" gorm:"not null"`
	AttendanceDate  time.Time    `json:"attendance_date" gorm:"type:date;not null"`
	PatientTypeCode string       `json:"patient_type_code" gorm:"type:text;not null"`
	PractitionerNo  string       `json:"practitioner_no" gorm:"type:text"`
	ClinicalNotes   string       `json:"clinical_notes" gorm:"type:text"`
	DelayReason     string       `json:"delay_reason,omitempty" gorm:"type:text"`
	Status          Status       `json:"status" gorm:"type:text;not null;index"`
	TotalAmount     float64      `json:"total_amount" gorm:"not null;default:0"`
	AllowChanges    bool         `json:"allow_changes" gorm:"not null;default:false"`
	SubmitLogID     *int64       `json:"submit_log_id,omitempty"`
	SubmittedAt     *time.Time   `json:"submitted_at,omitempty"`
	CreatedBy       string       `json:"created_by" gorm:"type:text"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null"`

	Items         []ClaimItem    `json:"items" gorm:"-"`
	OriginalItems []ClaimItem    `json:"original_items" gorm:"-"`
	Diseases      []ClaimDisease `json:"diseases" gorm:"-"`
}

// ClaimItem is a billed line. Original rows are the snapshot taken when the
// claim was created and are kept apart from the working rows.
type ClaimItem struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	ClaimID          snowflake.ID `json:"claim_id" gorm:"not null;index:idx_claim_items_claim,priority:1"`
	Original         bool         `json:"original" gorm:"not null;default:false;index:idx_claim_items_claim,priority:2"`
	Position         int          `json:"position" gorm:"not null"`
	FolioItemID      string       `json:"folio_item_id" gorm:"type:text"`
	ItemCode         string       `json:"item_code" gorm:"type:text;not null"`
	ItemName         string       `json:"item_name" gorm:"type:text"`
	ItemQuantity     float64      `json:"item_quantity" gorm:"not null"`
	UnitPrice        float64      `json:"unit_price" gorm:"not null"`
	AmountClaimed    float64      `json:"amount_claimed" gorm:"not null"`
	ApprovalRefNo    string       `json:"approval_ref_no,omitempty" gorm:"type:text"`
	Status           ItemStatus   `json:"status" gorm:"type:text;not null"`
	PatientEncounter string       `json:"patient_encounter,omitempty" gorm:"type:text"`
	RefDoctype       string       `json:"ref_doctype,omitempty" gorm:"type:text"`
	RefDocname       string       `json:"ref_docname,omitempty" gorm:"type:text"`
	CreatedBy        string       `json:"created_by" gorm:"type:text"`
	DateCreated      time.Time    `json:"date_created" gorm:"not null"`
}

type ClaimDisease struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	ClaimID        snowflake.ID `json:"claim_id" gorm:"not null;index"`
	FolioDiseaseID string       `json:"folio_disease_id" gorm:"type:text"`
	DiseaseCode    string       `json:"disease_code" gorm:"type:text;not null"`
	Status         string       `json:"status" gorm:"type:text;not null"`
	CreatedBy      string       `json:"created_by" gorm:"type:text"`
	DateCreated    time.Time    `json:"date_created" gorm:"not null"`
}

// FolioCounter holds the last folio number issued per company, provider and claim month.
type FolioCounter struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	Company     string       `gorm:"type:text;not null;uniqueIndex:ux_folio_counters_period,priority:1"`
	Provider    string       `gorm:"type:text;not null;uniqueIndex:ux_folio_counters_period,priority:2"`
	ClaimYear   int          `gorm:"not null;uniqueIndex:ux_folio_counters_period,priority:3"`
	ClaimMonth  int          `gorm:"not null;uniqueIndex:ux_folio_counters_period,priority:4"`
	FolioNo     int          `gorm:"not null"`
	PostingDate time.Time    `gorm:"not null"`
}
