package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
)

type Service interface {
	Sync(ctx context.Context, provider providerdomain.Provider, company string) (*SyncResult, error)
	// PreviewDiff compares the two latest snapshots without storing anything.
	// It returns nil when fewer than two snapshots exist or nothing changed.
	PreviewDiff(ctx context.Context, provider providerdomain.Provider, company string) (*PackageUpdate, error)
	// RecordDiff is PreviewDiff followed by storing the update.
	RecordDiff(ctx context.Context, provider providerdomain.Provider, company string) (*PackageUpdate, error)
	ListUpdates(ctx context.Context, provider providerdomain.Provider, company string) ([]PackageUpdate, error)
	ListPackages(ctx context.Context, provider providerdomain.Provider, company string) ([]PricePackage, error)
	ListExcluded(ctx context.Context, provider providerdomain.Provider, company string) ([]ExcludedService, error)
}

type SyncResult struct {
	Provider string         `json:"provider"`
	Company  string         `json:"company"`
	LogID    snowflake.ID   `json:"log_id"`
	Packages int            `json:"packages"`
	Excluded int            `json:"excluded_services"`
	Update   *PackageUpdate `json:"update,omitempty"`
}

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrEmptySnapshot  = errors.New("empty_price_snapshot")
)
