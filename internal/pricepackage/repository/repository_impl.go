package repository

import (
	"context"

	pricepackagedomain "github.com/smallbiznis/hmsinsure/internal/pricepackage/domain"
	"gorm.io/gorm"
)

const batchSize = 1000

type repo struct{}

func Provide() pricepackagedomain.Repository {
	return &repo{}
}

func (r *repo) ReplacePackages(ctx context.Context, db *gorm.DB, provider, company string, items []pricepackagedomain.PricePackage) error {
	tx := db.WithContext(ctx)
	if err := tx.Where("provider = ? AND company = ?", provider, company).
		Delete(&pricepackagedomain.PricePackage{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return tx.CreateInBatches(items, batchSize).Error
}

func (r *repo) ReplaceExcluded(ctx context.Context, db *gorm.DB, provider, company string, items []pricepackagedomain.ExcludedService) error {
	tx := db.WithContext(ctx)
	if err := tx.Where("provider = ? AND company = ?", provider, company).
		Delete(&pricepackagedomain.ExcludedService{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return tx.CreateInBatches(items, batchSize).Error
}

func (r *repo) ListPackages(ctx context.Context, db *gorm.DB, provider, company string) ([]pricepackagedomain.PricePackage, error) {
	var items []pricepackagedomain.PricePackage
	err := db.WithContext(ctx).
		Where("provider = ? AND company = ?", provider, company).
		Order("item_code ASC").
		Order("scheme_id ASC").
		Order("facility_level_code ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListExcluded(ctx context.Context, db *gorm.DB, provider, company string) ([]pricepackagedomain.ExcludedService, error) {
	var items []pricepackagedomain.ExcludedService
	err := db.WithContext(ctx).
		Where("provider = ? AND company = ?", provider, company).
		Order("item_code ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertUpdate(ctx context.Context, db *gorm.DB, update *pricepackagedomain.PackageUpdate) error {
	return db.WithContext(ctx).Create(update).Error
}

func (r *repo) ListUpdates(ctx context.Context, db *gorm.DB, provider, company string, limit int) ([]pricepackagedomain.PackageUpdate, error) {
	var items []pricepackagedomain.PackageUpdate
	query := db.WithContext(ctx).
		Preload("Rows", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Where("provider = ? AND company = ?", provider, company).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
