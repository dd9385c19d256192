package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindPriceList(ctx context.Context, db *gorm.DB, name string) (*PriceList, error)
	InsertPriceList(ctx context.Context, db *gorm.DB, list *PriceList) error
	// ListItemPrices returns selling prices of the item in the list and currency.
	ListItemPrices(ctx context.Context, db *gorm.DB, priceList, itemCode, currency string) ([]ItemPrice, error)
	ListByPriceList(ctx context.Context, db *gorm.DB, priceList string) ([]ItemPrice, error)
	InsertItemPrice(ctx context.Context, db *gorm.DB, price *ItemPrice) error
	UpdateRate(ctx context.Context, db *gorm.DB, id snowflake.ID, rate float64) error
	DeleteItemPrice(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
