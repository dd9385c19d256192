package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	logdomain "github.com/smallbiznis/hmsinsure/internal/responselog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() logdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, l *logdomain.ResponseLog) error {
	return db.WithContext(ctx).Create(l).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*logdomain.ResponseLog, error) {
	var l logdomain.ResponseLog
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&l).Error
	if err != nil {
		return nil, err
	}
	if l.ID == 0 {
		return nil, nil
	}
	return &l, nil
}

func (r *repo) Latest(ctx context.Context, db *gorm.DB, provider, company, requestType string, limit int) ([]logdomain.ResponseLog, error) {
	return r.latest(db.WithContext(ctx), provider, company, requestType, limit)
}

func (r *repo) LatestSuccessful(ctx context.Context, db *gorm.DB, provider, company, requestType string, limit int) ([]logdomain.ResponseLog, error) {
	return r.latest(db.WithContext(ctx).Where("status_code = ?", 200), provider, company, requestType, limit)
}

func (r *repo) latest(db *gorm.DB, provider, company, requestType string, limit int) ([]logdomain.ResponseLog, error) {
	var items []logdomain.ResponseLog
	err := db.
		Where("provider = ? AND company = ? AND request_type = ? AND response_size > 0", provider, company, requestType).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
