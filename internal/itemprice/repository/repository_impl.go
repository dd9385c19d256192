package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	itempricedomain "github.com/smallbiznis/hmsinsure/internal/itemprice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() itempricedomain.Repository {
	return &repo{}
}

func (r *repo) FindPriceList(ctx context.Context, db *gorm.DB, name string) (*itempricedomain.PriceList, error) {
	var list itempricedomain.PriceList
	err := db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&list).Error
	if err != nil {
		return nil, err
	}
	if list.ID == 0 {
		return nil, nil
	}
	return &list, nil
}

func (r *repo) InsertPriceList(ctx context.Context, db *gorm.DB, list *itempricedomain.PriceList) error {
	return db.WithContext(ctx).Create(list).Error
}

func (r *repo) ListItemPrices(ctx context.Context, db *gorm.DB, priceList, itemCode, currency string) ([]itempricedomain.ItemPrice, error) {
	var items []itempricedomain.ItemPrice
	err := db.WithContext(ctx).
		Where("price_list = ? AND item_code = ? AND currency = ? AND selling = ?", priceList, itemCode, currency, true).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByPriceList(ctx context.Context, db *gorm.DB, priceList string) ([]itempricedomain.ItemPrice, error) {
	var items []itempricedomain.ItemPrice
	err := db.WithContext(ctx).
		Where("price_list = ?", priceList).
		Order("item_code ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertItemPrice(ctx context.Context, db *gorm.DB, price *itempricedomain.ItemPrice) error {
	return db.WithContext(ctx).Create(price).Error
}

func (r *repo) UpdateRate(ctx context.Context, db *gorm.DB, id snowflake.ID, rate float64) error {
	return db.WithContext(ctx).
		Model(&itempricedomain.ItemPrice{}).
		Where("id = ?", id).
		Updates(map[string]any{"price_list_rate": rate, "updated_at": time.Now().UTC()}).Error
}

func (r *repo) DeleteItemPrice(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&itempricedomain.ItemPrice{}).Error
}
