package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Request types recorded against provider calls. The differ only compares
// logs of the same type.
const (
	RequestToken                        = "Token"
	RequestGetPricePackage              = "GetPricePackage"
	RequestGetPricePackageWithExclusion = "GetPricePackageWithExcludedServices"
	RequestGetCardDetails               = "GetCardDetails"
	RequestSubmitClaim                  = "SubmitClaim"
)

// ResponseLog is one append-only provider exchange. ResponseData is snappy
// compressed; use Service.Payload to read it.
type ResponseLog struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	Provider      string            `json:"provider" gorm:"type:text;not null;index:idx_response_logs_lookup,priority:1"`
	Company       string            `json:"company" gorm:"type:text;not null;index:idx_response_logs_lookup,priority:2"`
	RequestType   string            `json:"request_type" gorm:"type:text;not null;index:idx_response_logs_lookup,priority:3"`
	RequestURL    string            `json:"request_url" gorm:"type:text"`
	RequestHeader datatypes.JSONMap `json:"request_header,omitempty" gorm:"type:jsonb"`
	RequestBody   string            `json:"request_body,omitempty" gorm:"type:text"`
	ResponseData  []byte            `json:"-" gorm:"type:bytea"`
	ResponseSize  int               `json:"response_size" gorm:"not null;default:0"`
	StatusCode    int               `json:"status_code" gorm:"not null;default:0"`
	RefDoctype    string            `json:"ref_doctype,omitempty" gorm:"type:text"`
	RefDocname    string            `json:"ref_docname,omitempty" gorm:"type:text"`
	UserID        string            `json:"user_id,omitempty" gorm:"type:text"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null;index:idx_response_logs_lookup,priority:4"`
}

func (ResponseLog) TableName() string { return "response_logs" }
