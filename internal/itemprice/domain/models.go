package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PriceList groups the selling prices charged to one insurer or scheme.
type PriceList struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null;uniqueIndex"`
	Code      string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Company   string       `json:"company" gorm:"type:text;not null"`
	Provider  string       `json:"provider" gorm:"type:text;not null"`
	Currency  string       `json:"currency" gorm:"type:text;not null"`
	Selling   bool         `json:"selling" gorm:"not null;default:true"`
	Buying    bool         `json:"buying" gorm:"not null;default:false"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (PriceList) TableName() string { return "price_lists" }

type ItemPrice struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	ItemCode  string       `json:"item_code" gorm:"type:text;not null;index:idx_item_prices_lookup,priority:2"`
	PriceList string       `json:"price_list" gorm:"type:text;not null;index:idx_item_prices_lookup,priority:1"`
	Currency  string       `json:"currency" gorm:"type:text;not null"`
	Rate      float64      `json:"price_list_rate" gorm:"column:price_list_rate;type:numeric;not null;default:0"`
	Selling   bool         `json:"selling" gorm:"not null;default:true"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (ItemPrice) TableName() string { return "item_prices" }
