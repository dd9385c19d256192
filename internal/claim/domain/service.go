package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	RegisterAppointment(ctx context.Context, req RegisterAppointmentRequest) (*Appointment, error)

	Create(ctx context.Context, req CreateClaimRequest) (*Claim, error)
	Get(ctx context.Context, id snowflake.ID) (*Claim, error)
	AddItems(ctx context.Context, id snowflake.ID, items []ItemInput) (*Claim, error)
	Validate(ctx context.Context, id snowflake.ID) (*Claim, error)
	Submit(ctx context.Context, id snowflake.ID, submittedBy string) (*Claim, error)

	// ReconcileRepeatedItems merges items sharing an item code and
	// permanently deletes the merged duplicates. It cannot be undone.
	ReconcileRepeatedItems(ctx context.Context, id snowflake.ID) (*ReconcileResult, error)
}

type RegisterAppointmentRequest struct {
	Name                string `json:"name" validate:"required"`
	Patient             string `json:"patient" validate:"required"`
	Provider            string `json:"provider" validate:"required"`
	Company             string `json:"company" validate:"required"`
	AuthorizationNumber string `json:"authorization_number" validate:"required"`
	CardNo              string `json:"card_no" validate:"required"`
}

type CreateClaimRequest struct {
	Provider        string         `json:"provider" validate:"required"`
	Company         string         `json:"company" validate:"required"`
	Patient         string         `json:"patient" validate:"required"`
	PatientName     string         `json:"patient_name"`
	FirstName       string         `json:"first_name"`
	LastName        string         `json:"last_name"`
	Gender          string         `json:"gender"`
	DateOfBirth     *time.Time     `json:"date_of_birth"`
	TelephoneNo     string         `json:"telephone_no"`
	PatientFileNo   string         `json:"patient_file_no"`
	Appointment     string         `json:"appointment" validate:"required"`
	AuthorizationNo string         `json:"authorization_no" validate:"required"`
	CardNo          string         `json:"card_no" validate:"required"`
	SerialNo        string         `json:"serial_no"`
	AttendanceDate  time.Time      `json:"attendance_date" validate:"required"`
	PatientTypeCode string         `json:"patient_type_code" validate:"required,oneof=OUT IN"`
	PractitionerNo  string         `json:"practitioner_no"`
	ClinicalNotes   string         `json:"clinical_notes"`
	DelayReason     string         `json:"delay_reason"`
	CreatedBy       string         `json:"created_by"`
	Items           []ItemInput    `json:"items" validate:"dive"`
	Diseases        []DiseaseInput `json:"diseases" validate:"dive"`
}

type ItemInput struct {
	ItemCode         string     `json:"item_code" validate:"required"`
	ItemName         string     `json:"item_name"`
	ItemQuantity     float64    `json:"item_quantity" validate:"gt=0"`
	UnitPrice        float64    `json:"unit_price" validate:"gte=0"`
	ApprovalRefNo    string     `json:"approval_ref_no"`
	Status           ItemStatus `json:"status" validate:"omitempty,oneof=Draft Submitted"`
	PatientEncounter string     `json:"patient_encounter"`
	RefDoctype       string     `json:"ref_doctype"`
	RefDocname       string     `json:"ref_docname"`
	CreatedBy        string     `json:"created_by"`
}

type DiseaseInput struct {
	DiseaseCode string `json:"disease_code" validate:"required"`
	Status      string `json:"status" validate:"omitempty,oneof=Provisional Final"`
	CreatedBy   string `json:"created_by"`
}

type ReconcileResult struct {
	Claim   *Claim `json:"claim"`
	Removed int64  `json:"removed"`
}

var (
	ErrClaimNotFound       = errors.New("claim_not_found")
	ErrClaimExists         = errors.New("claim_exists")
	ErrClaimSubmitted      = errors.New("claim_already_submitted")
	ErrAppointmentNotFound = errors.New("appointment_not_found")
	ErrAppointmentExists   = errors.New("appointment_exists")
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrInvalidTransition   = errors.New("invalid_claim_transition")
	ErrGuardFailed         = errors.New("claim_guard_failed")
)
