package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// ReplacePackages deletes every package of provider and company and inserts items.
	ReplacePackages(ctx context.Context, db *gorm.DB, provider, company string, items []PricePackage) error
	ReplaceExcluded(ctx context.Context, db *gorm.DB, provider, company string, items []ExcludedService) error
	ListPackages(ctx context.Context, db *gorm.DB, provider, company string) ([]PricePackage, error)
	ListExcluded(ctx context.Context, db *gorm.DB, provider, company string) ([]ExcludedService, error)
	InsertUpdate(ctx context.Context, db *gorm.DB, update *PackageUpdate) error
	ListUpdates(ctx context.Context, db *gorm.DB, provider, company string, limit int) ([]PackageUpdate, error)
}
