package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
)

// DeliveryNote dispenses prescribed items to a patient.
type DeliveryNote struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	Company          string       `json:"company" gorm:"type:text;not null;index"`
	Patient          string       `json:"patient" gorm:"type:text;not null;index"`
	ReferenceDoctype string       `json:"reference_doctype,omitempty" gorm:"type:text"`
	ReferenceName    string       `json:"reference_name,omitempty" gorm:"type:text"`
	Status           Status       `json:"status" gorm:"type:text;not null"`
	AllOutOfStock    bool         `json:"all_out_of_stock" gorm:"not null;default:false"`
	SubmittedAt      *time.Time   `json:"submitted_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null"`

	Items         []Item         `json:"items" gorm:"-"`
	OriginalItems []OriginalItem `json:"original_items" gorm:"-"`
}

type Item struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	NoteID         snowflake.ID `json:"note_id" gorm:"not null;index"`
	Position       int          `json:"position" gorm:"not null"`
	ItemCode       string       `json:"item_code" gorm:"type:text;not null"`
	ItemName       string       `json:"item_name" gorm:"type:text"`
	Qty            float64      `json:"qty" gorm:"not null"`
	UOM            string       `json:"uom" gorm:"type:text"`
	IsRestricted   bool         `json:"is_restricted" gorm:"not null;default:false"`
	ApprovalNumber string       `json:"approval_number,omitempty" gorm:"type:text"`
	OutOfStock     bool         `json:"out_of_stock" gorm:"not null;default:false"`
	OriginalItem   string       `json:"original_item" gorm:"type:text"`
	OriginalQty    float64      `json:"original_qty"`
}

func (Item) TableName() string { return "delivery_note_items" }

// OriginalItem is the snapshot of an item taken when the note was created.
// DNDetail links it to the working item it was copied from.
type OriginalItem struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	NoteID         snowflake.ID `json:"note_id" gorm:"not null;index"`
	DNDetail       snowflake.ID `json:"dn_detail" gorm:"column:dn_detail"`
	Position       int          `json:"position" gorm:"not null"`
	ItemCode       string       `json:"item_code" gorm:"type:text;not null"`
	ItemName       string       `json:"item_name" gorm:"type:text"`
	Qty            float64      `json:"qty" gorm:"not null"`
	UOM            string       `json:"uom" gorm:"type:text"`
	IsRestricted   bool         `json:"is_restricted" gorm:"not null;default:false"`
	ApprovalNumber string       `json:"approval_number,omitempty" gorm:"type:text"`
	OutOfStock     bool         `json:"out_of_stock" gorm:"not null;default:false"`
}

func (OriginalItem) TableName() string { return "delivery_note_original_items" }
