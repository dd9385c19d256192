package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/internal/config"
	coveragedomain "github.com/smallbiznis/hmsinsure/internal/coverage/domain"
	itempricedomain "github.com/smallbiznis/hmsinsure/internal/itemprice/domain"
	"github.com/smallbiznis/hmsinsure/internal/observability/logger"
	pricepackagedomain "github.com/smallbiznis/hmsinsure/internal/pricepackage/domain"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"github.com/smallbiznis/hmsinsure/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         itempricedomain.Repository
	CoverageRepo coveragedomain.Repository
	Packages     pricepackagedomain.Service
	Settings     config.SettingsSource
	Clock        clock.Clock
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         itempricedomain.Repository
	coverageRepo coveragedomain.Repository
	packages     pricepackagedomain.Service
	settings     config.SettingsSource
	clock        clock.Clock
}

func New(p Params) itempricedomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("itemprice.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		coverageRepo: p.CoverageRepo,
		packages:     p.Packages,
		settings:     p.Settings,
		clock:        p.Clock,
	}
}

// target is the provider price an item should carry in one price list.
type target struct {
	priceList string
	itemCode  string
	rate      float64
	active    bool
}

func (s *Service) SyncPriceLists(ctx context.Context, provider providerdomain.Provider, company string) (*itempricedomain.SyncResult, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, itempricedomain.ErrInvalidCompany
	}
	setting, err := s.settings.Get().Find(company, provider.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providerdomain.ErrProviderNotSet, err)
	}
	currency := strings.TrimSpace(setting.Currency)
	if currency == "" {
		return nil, itempricedomain.ErrMissingCurrency
	}
	log := logger.WithProvider(logger.WithContext(ctx, s.log), provider.String(), company)

	packages, err := s.packages.ListPackages(ctx, provider, company)
	if err != nil {
		return nil, err
	}
	refs, err := s.coverageRepo.ListItemReferences(ctx, s.db, provider.String())
	if err != nil {
		return nil, err
	}

	targets, lists := buildTargets(provider, setting.CompanyAbbr, packages, refs)
	result := &itempricedomain.SyncResult{Provider: provider.String(), Company: company, PriceLists: lists}

	err = db.Transaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		for _, name := range lists {
			if err := s.ensurePriceList(ctx, tx, name, company, provider, currency); err != nil {
				return err
			}
		}
		for _, t := range targets {
			if err := s.apply(ctx, tx, t, currency, result); err != nil {
				return fmt.Errorf("apply price of %s in %s: %w", t.itemCode, t.priceList, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("price lists synced",
		zap.Strings("price_lists", lists),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("deleted", result.Deleted),
	)
	return result, nil
}

// buildTargets maps packages to local items. Jubilee prices go to a single
// company list; NHIF prices go to one list per scheme.
func buildTargets(provider providerdomain.Provider, abbr string, packages []pricepackagedomain.PricePackage, refs []coveragedomain.ItemReference) ([]target, []string) {
	type packageKey struct{ itemCode, scheme string }
	first := make(map[packageKey]pricepackagedomain.PricePackage, len(packages))
	schemes := make(map[string]struct{})
	for _, pkg := range packages {
		scheme := ""
		if provider == providerdomain.NHIF {
			scheme = pkg.SchemeID
			if scheme == "" {
				continue
			}
			schemes[scheme] = struct{}{}
		}
		key := packageKey{pkg.ItemCode, scheme}
		if _, ok := first[key]; !ok {
			first[key] = pkg
		}
	}

	var lists []string
	if provider == providerdomain.NHIF {
		for scheme := range schemes {
			lists = append(lists, nhifPriceList(scheme))
		}
		sort.Strings(lists)
	} else if len(first) > 0 {
		lists = []string{jubileePriceList(abbr)}
	}

	var targets []target
	for _, ref := range refs {
		if provider == providerdomain.NHIF {
			for _, list := range lists {
				scheme := strings.TrimPrefix(list, "NHIF-")
				pkg, ok := first[packageKey{ref.RefCode, scheme}]
				if !ok {
					continue
				}
				targets = append(targets, target{priceList: list, itemCode: ref.ItemCode, rate: pkg.UnitPrice, active: pkg.IsActive})
			}
			continue
		}
		pkg, ok := first[packageKey{ref.RefCode, ""}]
		if !ok {
			continue
		}
		targets = append(targets, target{priceList: lists[0], itemCode: ref.ItemCode, rate: pkg.UnitPrice, active: pkg.IsActive})
	}
	return targets, lists
}

func jubileePriceList(abbr string) string { return "Jubilee " + strings.TrimSpace(abbr) }

func nhifPriceList(scheme string) string { return "NHIF-" + scheme }

func (s *Service) ensurePriceList(ctx context.Context, tx *gorm.DB, name, company string, provider providerdomain.Provider, currency string) error {
	existing, err := s.repo.FindPriceList(ctx, tx, name)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return s.repo.InsertPriceList(ctx, tx, &itempricedomain.PriceList{
		ID:        s.genID.Generate(),
		Name:      name,
		Code:      slug.Make(name),
		Company:   company,
		Provider:  provider.String(),
		Currency:  currency,
		Selling:   true,
		CreatedAt: s.clock.Now(),
	})
}

// apply reconciles stored prices with t: differing active rates are updated,
// zero rates and inactive packages delete the price, and missing active
// prices are created.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, t target, currency string, result *itempricedomain.SyncResult) error {
	prices, err := s.repo.ListItemPrices(ctx, tx, t.priceList, t.itemCode, currency)
	if err != nil {
		return err
	}

	if len(prices) == 0 {
		if !t.active || t.rate == 0 {
			return nil
		}
		now := s.clock.Now()
		if err := s.repo.InsertItemPrice(ctx, tx, &itempricedomain.ItemPrice{
			ID:        s.genID.Generate(),
			ItemCode:  t.itemCode,
			PriceList: t.priceList,
			Currency:  currency,
			Rate:      t.rate,
			Selling:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		result.Created++
		return nil
	}

	for _, price := range prices {
		switch {
		case !t.active || t.rate == 0:
			if err := s.repo.DeleteItemPrice(ctx, tx, price.ID); err != nil {
				return err
			}
			result.Deleted++
		case price.Rate != t.rate:
			if err := s.repo.UpdateRate(ctx, tx, price.ID, t.rate); err != nil {
				return err
			}
			result.Updated++
		}
	}
	return nil
}

func (s *Service) ListItemPrices(ctx context.Context, priceList string) ([]itempricedomain.ItemPrice, error) {
	priceList = strings.TrimSpace(priceList)
	list, err := s.repo.FindPriceList(ctx, s.db, priceList)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, itempricedomain.ErrPriceListMissing
	}
	return s.repo.ListByPriceList(ctx, s.db, list.Name)
}
