package domain

import (
	"context"
	"errors"

	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
)

type Service interface {
	// SyncPriceLists applies the stored provider packages to the company's price lists.
	SyncPriceLists(ctx context.Context, provider providerdomain.Provider, company string) (*SyncResult, error)
	ListItemPrices(ctx context.Context, priceList string) ([]ItemPrice, error)
}

type SyncResult struct {
	Provider   string   `json:"provider"`
	Company    string   `json:"company"`
	PriceLists []string `json:"price_lists"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Deleted    int      `json:"deleted"`
}

var (
	ErrInvalidCompany   = errors.New("invalid_company")
	ErrMissingCurrency  = errors.New("missing_company_currency")
	ErrPriceListMissing = errors.New("price_list_not_found")
)
