package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, log *ResponseLog) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ResponseLog, error)
	// Latest returns logs with a non-empty response, newest first.
	Latest(ctx context.Context, db *gorm.DB, provider, company, requestType string, limit int) ([]ResponseLog, error)
	// LatestSuccessful is Latest restricted to responses answered with 200.
	LatestSuccessful(ctx context.Context, db *gorm.DB, provider, company, requestType string, limit int) ([]ResponseLog, error)
}
