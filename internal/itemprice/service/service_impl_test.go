package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/internal/config"
	coveragedomain "github.com/smallbiznis/hmsinsure/internal/coverage/domain"
	coveragerepository "github.com/smallbiznis/hmsinsure/internal/coverage/repository"
	itempricedomain "github.com/smallbiznis/hmsinsure/internal/itemprice/domain"
	"github.com/smallbiznis/hmsinsure/internal/itemprice/repository"
	pricepackagedomain "github.com/smallbiznis/hmsinsure/internal/pricepackage/domain"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"github.com/smallbiznis/hmsinsure/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const company = "Aga Khan Hospital"

type stubPackages struct {
	pricepackagedomain.Service
	packages []pricepackagedomain.PricePackage
}

func (s *stubPackages) ListPackages(context.Context, providerdomain.Provider, string) ([]pricepackagedomain.PricePackage, error) {
	return s.packages, nil
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	node     *snowflake.Node
	packages *stubPackages
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.Open(t,
		&coveragedomain.ItemReference{},
		&itempricedomain.PriceList{},
		&itempricedomain.ItemPrice{},
	)
	node := dbtest.Node(t)
	packages := &stubPackages{}
	settings := config.StaticSettings{Providers: []config.ProviderSetting{
		{Company: company, CompanyAbbr: "AKH", Currency: "TZS", Provider: config.ProviderJubilee, Enabled: true},
		{Company: company, CompanyAbbr: "AKH", Currency: "TZS", Provider: config.ProviderNHIF, Enabled: true},
	}}

	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Repo:         repository.Provide(),
		CoverageRepo: coveragerepository.Provide(),
		Packages:     packages,
		Settings:     settings,
		Clock:        clock.NewFakeClock(time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)),
	}).(*Service)
	return &fixture{svc: svc, db: db, node: node, packages: packages}
}

func (f *fixture) reference(t *testing.T, provider, itemCode, refCode string) {
	t.Helper()
	require.NoError(t, coveragerepository.Provide().InsertItemReference(context.Background(), f.db, &coveragedomain.ItemReference{
		ID: f.node.Generate(), ItemCode: itemCode, Provider: provider, RefCode: refCode, CreatedAt: time.Now(),
	}))
}

func (f *fixture) price(t *testing.T, list, itemCode string, rate float64) {
	t.Helper()
	require.NoError(t, repository.Provide().InsertItemPrice(context.Background(), f.db, &itempricedomain.ItemPrice{
		ID: f.node.Generate(), ItemCode: itemCode, PriceList: list, Currency: "TZS", Rate: rate, Selling: true,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))
}

func ratesOf(prices []itempricedomain.ItemPrice) map[string]float64 {
	out := make(map[string]float64, len(prices))
	for _, p := range prices {
		out[p.ItemCode] = p.Rate
	}
	return out
}

func TestJubileeSyncCreatesUpdatesAndSkipsZeroRates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reference(t, "Jubilee", "CONSULT", "C001")
	f.reference(t, "Jubilee", "FBC", "L010")
	f.reference(t, "Jubilee", "FREE", "Z000")
	f.price(t, "Jubilee AKH", "FBC", 5000)
	f.packages.packages = []pricepackagedomain.PricePackage{
		{Provider: "Jubilee", ItemCode: "C001", UnitPrice: 25000, IsActive: true},
		{Provider: "Jubilee", ItemCode: "L010", UnitPrice: 12000, IsActive: true},
		{Provider: "Jubilee", ItemCode: "Z000", UnitPrice: 0, IsActive: true},
	}

	result, err := f.svc.SyncPriceLists(ctx, providerdomain.Jubilee, company)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jubilee AKH"}, result.PriceLists)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Deleted)

	list, err := repository.Provide().FindPriceList(ctx, f.db, "Jubilee AKH")
	require.NoError(t, err)
	require.NotNil(t, list)
	assert.Equal(t, "jubilee-akh", list.Code)
	assert.Equal(t, "TZS", list.Currency)

	prices, err := f.svc.ListItemPrices(ctx, "Jubilee AKH")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"CONSULT": 25000, "FBC": 12000}, ratesOf(prices))

	f.packages.packages[1].UnitPrice = 0
	result, err = f.svc.SyncPriceLists(ctx, providerdomain.Jubilee, company)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 0, result.Created)

	prices, err = f.svc.ListItemPrices(ctx, "Jubilee AKH")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"CONSULT": 25000}, ratesOf(prices))
}

func TestNHIFSyncUsesOnePriceListPerScheme(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reference(t, "NHIF", "FBC", "1001")
	f.price(t, "NHIF-2000", "FBC", 8000)
	f.packages.packages = []pricepackagedomain.PricePackage{
		{Provider: "NHIF", ItemCode: "1001", SchemeID: "1001", FacilityLevelCode: "1", UnitPrice: 11000, IsActive: true},
		{Provider: "NHIF", ItemCode: "1001", SchemeID: "1001", FacilityLevelCode: "2", UnitPrice: 13000, IsActive: true},
		{Provider: "NHIF", ItemCode: "1001", SchemeID: "2000", UnitPrice: 9000, IsActive: false},
	}

	result, err := f.svc.SyncPriceLists(ctx, providerdomain.NHIF, company)
	require.NoError(t, err)
	assert.Equal(t, []string{"NHIF-1001", "NHIF-2000"}, result.PriceLists)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Deleted)

	prices, err := f.svc.ListItemPrices(ctx, "NHIF-1001")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"FBC": 11000}, ratesOf(prices))

	prices, err = f.svc.ListItemPrices(ctx, "NHIF-2000")
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestSyncRequiresConfiguredCompany(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SyncPriceLists(context.Background(), providerdomain.NHIF, "Unknown Hospital")
	assert.ErrorIs(t, err, providerdomain.ErrProviderNotSet)

	_, err = f.svc.ListItemPrices(context.Background(), "NHIF-404")
	assert.ErrorIs(t, err, itempricedomain.ErrPriceListMissing)
}
