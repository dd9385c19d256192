package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	deliverynotedomain "github.com/smallbiznis/hmsinsure/internal/deliverynote/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() deliverynotedomain.Repository {
	return &repo{}
}

func (r *repo) InsertNote(ctx context.Context, db *gorm.DB, note *deliverynotedomain.DeliveryNote) error {
	return db.WithContext(ctx).Create(note).Error
}

func (r *repo) UpdateNote(ctx context.Context, db *gorm.DB, note *deliverynotedomain.DeliveryNote) error {
	return db.WithContext(ctx).Save(note).Error
}

func (r *repo) FindNote(ctx context.Context, db *gorm.DB, id snowflake.ID) (*deliverynotedomain.DeliveryNote, error) {
	var note deliverynotedomain.DeliveryNote
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&note).Error
	if err != nil {
		return nil, err
	}
	if note.ID == 0 {
		return nil, nil
	}
	return &note, nil
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []deliverynotedomain.Item) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, noteID snowflake.ID) ([]deliverynotedomain.Item, error) {
	var items []deliverynotedomain.Item
	err := db.WithContext(ctx).
		Where("note_id = ?", noteID).
		Order("position ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SaveItems(ctx context.Context, db *gorm.DB, items []deliverynotedomain.Item) error {
	for i := range items {
		if err := db.WithContext(ctx).Save(&items[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) DeleteItems(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Where("id IN ?", ids).Delete(&deliverynotedomain.Item{}).Error
}

func (r *repo) InsertOriginals(ctx context.Context, db *gorm.DB, items []deliverynotedomain.OriginalItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) ListOriginals(ctx context.Context, db *gorm.DB, noteID snowflake.ID) ([]deliverynotedomain.OriginalItem, error) {
	var items []deliverynotedomain.OriginalItem
	err := db.WithContext(ctx).
		Where("note_id = ?", noteID).
		Order("position ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SaveOriginals(ctx context.Context, db *gorm.DB, items []deliverynotedomain.OriginalItem) error {
	for i := range items {
		if err := db.WithContext(ctx).Save(&items[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
