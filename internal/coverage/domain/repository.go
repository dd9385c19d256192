package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	InsertPlan(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindPlan(ctx context.Context, db *gorm.DB, name string) (*Plan, error)
	// ListActivePlans filters by name when name is not empty.
	ListActivePlans(ctx context.Context, db *gorm.DB, provider, company, name string) ([]Plan, error)

	InsertTemplate(ctx context.Context, db *gorm.DB, template *ServiceTemplate) error
	InsertItemReference(ctx context.Context, db *gorm.DB, ref *ItemReference) error
	ListItemReferences(ctx context.Context, db *gorm.DB, provider string) ([]ItemReference, error)
	// ListCoverageItems joins enabled templates with the provider's item references.
	ListCoverageItems(ctx context.Context, db *gorm.DB, provider string) ([]CoverageItem, error)

	InsertCoverages(ctx context.Context, db *gorm.DB, items []Coverage) error
	DeleteAutoGenerated(ctx context.Context, db *gorm.DB, planName, company string) (int64, error)
	ListCoverages(ctx context.Context, db *gorm.DB, planName string) ([]Coverage, error)
}
