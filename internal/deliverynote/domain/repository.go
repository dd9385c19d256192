package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertNote(ctx context.Context, db *gorm.DB, note *DeliveryNote) error
	UpdateNote(ctx context.Context, db *gorm.DB, note *DeliveryNote) error
	FindNote(ctx context.Context, db *gorm.DB, id snowflake.ID) (*DeliveryNote, error)

	InsertItems(ctx context.Context, db *gorm.DB, items []Item) error
	ListItems(ctx context.Context, db *gorm.DB, noteID snowflake.ID) ([]Item, error)
	SaveItems(ctx context.Context, db *gorm.DB, items []Item) error
	DeleteItems(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error

	InsertOriginals(ctx context.Context, db *gorm.DB, items []OriginalItem) error
	ListOriginals(ctx context.Context, db *gorm.DB, noteID snowflake.ID) ([]OriginalItem, error)
	SaveOriginals(ctx context.Context, db *gorm.DB, items []OriginalItem) error
}
