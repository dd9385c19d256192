package repository

import (
	"context"
	"strings"

	coveragedomain "github.com/smallbiznis/hmsinsure/internal/coverage/domain"
	"gorm.io/gorm"
)

const batchSize = 1000

type repo struct{}

func Provide() coveragedomain.Repository {
	return &repo{}
}

func (r *repo) InsertPlan(ctx context.Context, db *gorm.DB, plan *coveragedomain.Plan) error {
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repo) FindPlan(ctx context.Context, db *gorm.DB, name string) (*coveragedomain.Plan, error) {
	var plan coveragedomain.Plan
	err := db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) ListActivePlans(ctx context.Context, db *gorm.DB, provider, company, name string) ([]coveragedomain.Plan, error) {
	var items []coveragedomain.Plan
	query := db.WithContext(ctx).
		Where("provider = ? AND company = ? AND is_active = ?", provider, company, true)
	if strings.TrimSpace(name) != "" {
		query = query.Where("name = ?", name)
	}
	if err := query.Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertTemplate(ctx context.Context, db *gorm.DB, template *coveragedomain.ServiceTemplate) error {
	return db.WithContext(ctx).Create(template).Error
}

func (r *repo) InsertItemReference(ctx context.Context, db *gorm.DB, ref *coveragedomain.ItemReference) error {
	return db.WithContext(ctx).Create(ref).Error
}

func (r *repo) ListItemReferences(ctx context.Context, db *gorm.DB, provider string) ([]coveragedomain.ItemReference, error) {
	var items []coveragedomain.ItemReference
	err := db.WithContext(ctx).
		Where("provider = ?", provider).
		Order("item_code ASC").
		Order("ref_code ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListCoverageItems(ctx context.Context, db *gorm.DB, provider string) ([]coveragedomain.CoverageItem, error) {
	var items []coveragedomain.CoverageItem
	err := db.WithContext(ctx).Raw(
		`SELECT st.service_type, st.name AS template_name, st.item_code, ir.ref_code
		 FROM service_templates st
		 INNER JOIN item_references ir ON ir.item_code = st.item_code AND ir.provider = ?
		 WHERE st.disabled = ?
		 ORDER BY st.service_type ASC, st.name ASC, ir.ref_code ASC`,
		provider,
		false,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertCoverages(ctx context.Context, db *gorm.DB, items []coveragedomain.Coverage) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(items, batchSize).Error
}

func (r *repo) DeleteAutoGenerated(ctx context.Context, db *gorm.DB, planName, company string) (int64, error) {
	res := db.WithContext(ctx).
		Where("plan_name = ? AND company = ? AND is_auto_generated = ?", planName, company, true).
		Delete(&coveragedomain.Coverage{})
	return res.RowsAffected, res.Error
}

func (r *repo) ListCoverages(ctx context.Context, db *gorm.DB, planName string) ([]coveragedomain.Coverage, error) {
	var items []coveragedomain.Coverage
	err := db.WithContext(ctx).
		Where("plan_name = ?", planName).
		Order("service_type ASC").
		Order("template_name ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
