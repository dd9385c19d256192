package domain

import (
	"context"
	"errors"
	"time"
)

const (
	RoleClerk         = "clerk"
	RoleClaimsOfficer = "claims_officer"
	RoleAdmin         = "admin"
)

type Service interface {
	List(ctx context.Context) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*SecretResponse, error)
	Rotate(ctx context.Context, keyID string) (*SecretResponse, error)
	Revoke(ctx context.Context, keyID string) error
	// Authenticate resolves a raw bearer token to its active key.
	Authenticate(ctx context.Context, raw string) (*APIKey, error)
	// Bootstrap installs raw as an admin key unless it already exists.
	Bootstrap(ctx context.Context, name, raw string) error
}

type CreateRequest struct {
	Name    string `json:"name" validate:"required"`
	Role    string `json:"role" validate:"required,oneof=clerk claims_officer admin"`
	Company string `json:"company"`
}

type Response struct {
	KeyID            string     `json:"key_id"`
	Name             string     `json:"name"`
	Role             string     `json:"role"`
	Company          string     `json:"company,omitempty"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       *time.Time `json:"last_used_at"`
	ExpiresAt        *time.Time `json:"expires_at"`
	RotatedFromKeyID *string    `json:"rotated_from_key_id"`
}

type SecretResponse struct {
	KeyID  string `json:"key_id"`
	APIKey string `json:"api_key"`
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrInvalidKeyID = errors.New("invalid_key_id")
	ErrNotFound     = errors.New("not_found")
	ErrUnauthorized = errors.New("unauthorized")
)
