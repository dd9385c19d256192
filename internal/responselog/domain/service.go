package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Add(ctx context.Context, req AddRequest) (*ResponseLog, error)
	Get(ctx context.Context, id snowflake.ID) (*ResponseLog, error)
	Latest(ctx context.Context, provider, company, requestType string, limit int) ([]ResponseLog, error)
	LatestSuccessful(ctx context.Context, provider, company, requestType string, limit int) ([]ResponseLog, error)
	Payload(log *ResponseLog) ([]byte, error)
}

type AddRequest struct {
	Provider      string
	Company       string
	RequestType   string
	RequestURL    string
	RequestHeader map[string]string
	RequestBody   string
	ResponseData  []byte
	StatusCode    int
	RefDoctype    string
	RefDocname    string
}

var (
	ErrInvalidProvider    = errors.New("invalid_provider")
	ErrInvalidRequestType = errors.New("invalid_request_type")
	ErrNotFound           = errors.New("response_log_not_found")
)
