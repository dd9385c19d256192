package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*DeliveryNote, error)
	Get(ctx context.Context, id snowflake.ID) (*DeliveryNote, error)
	// Validate applies stock flags, mirrors them into the original items and
	// drops out of stock items from the note.
	Validate(ctx context.Context, id snowflake.ID, req ValidateRequest) (*ValidateResult, error)
	ConvertToInStock(ctx context.Context, id, originalID snowflake.ID) (*DeliveryNote, error)
	Submit(ctx context.Context, id snowflake.ID) (*DeliveryNote, error)
}

type CreateRequest struct {
	Company          string      `json:"company" validate:"required"`
	Patient          string      `json:"patient" validate:"required"`
	ReferenceDoctype string      `json:"reference_doctype"`
	ReferenceName    string      `json:"reference_name"`
	Items            []ItemInput `json:"items" validate:"required,min=1,dive"`
}

type ItemInput struct {
	ItemCode       string  `json:"item_code" validate:"required"`
	ItemName       string  `json:"item_name"`
	Qty            float64 `json:"qty" validate:"gt=0"`
	UOM            string  `json:"uom"`
	IsRestricted   bool    `json:"is_restricted"`
	ApprovalNumber string  `json:"approval_number"`
}

type ValidateRequest struct {
	Items []ItemFlag `json:"items" validate:"dive"`
}

// ItemFlag updates one working item. A nil field is left unchanged.
type ItemFlag struct {
	ItemID         snowflake.ID `json:"item_id" validate:"required"`
	OutOfStock     *bool        `json:"out_of_stock"`
	ApprovalNumber *string      `json:"approval_number"`
}

type ValidateResult struct {
	Note          *DeliveryNote `json:"note"`
	Removed       int           `json:"removed"`
	AllOutOfStock bool          `json:"all_out_of_stock"`
}

var (
	ErrNoteNotFound     = errors.New("delivery_note_not_found")
	ErrItemNotFound     = errors.New("delivery_note_item_not_found")
	ErrNoteSubmitted    = errors.New("delivery_note_already_submitted")
	ErrItemInStock      = errors.New("delivery_note_item_in_stock")
	ErrApprovalRequired = errors.New("approval_number_required")
	ErrAllOutOfStock    = errors.New("all_items_out_of_stock")
	ErrInvalidRequest   = errors.New("invalid_request")
)
