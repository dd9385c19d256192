package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/internal/observability/logger"
	"github.com/smallbiznis/hmsinsure/internal/observability/metrics"
	pricepackagedomain "github.com/smallbiznis/hmsinsure/internal/pricepackage/domain"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	logdomain "github.com/smallbiznis/hmsinsure/internal/responselog/domain"
	"github.com/smallbiznis/hmsinsure/internal/snapshotdiff"
	"github.com/smallbiznis/hmsinsure/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     pricepackagedomain.Repository
	Registry providerdomain.Registry
	Logs     logdomain.Service
	Clock    clock.Clock
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     pricepackagedomain.Repository
	registry providerdomain.Registry
	logs     logdomain.Service
	clock    clock.Clock
	metrics  *metrics.Metrics
}

func New(p Params) pricepackagedomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("pricepackage.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		registry: p.Registry,
		logs:     p.Logs,
		clock:    p.Clock,
		metrics:  p.Metrics,
	}
}

// Sync fetches the provider price list, replaces the stored packages in one
// transaction and records the difference against the previous snapshot.
func (s *Service) Sync(ctx context.Context, provider providerdomain.Provider, company string) (*pricepackagedomain.SyncResult, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, pricepackagedomain.ErrInvalidCompany
	}
	client, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	log := logger.WithProvider(logger.WithContext(ctx, s.log), provider.String(), company)

	snapshot, err := client.FetchPriceSnapshot(ctx, company)
	if err != nil {
		s.metrics.RecordSnapshotSync(ctx, provider.String(), "failed")
		return nil, err
	}
	if len(snapshot.PricePackages) == 0 {
		s.metrics.RecordSnapshotSync(ctx, provider.String(), "empty")
		return nil, pricepackagedomain.ErrEmptySnapshot
	}

	now := s.clock.Now()
	packages := make([]pricepackagedomain.PricePackage, 0, len(snapshot.PricePackages))
	for _, rec := range snapshot.PricePackages {
		pkg := pricepackagedomain.PackageFromRecord(provider, rec)
		pkg.ID = s.genID.Generate()
		pkg.Company = company
		pkg.FacilityCode = snapshot.FacilityCode
		pkg.LogID = snapshot.LogID
		pkg.SnapshotAt = now
		packages = append(packages, pkg)
	}
	excluded := make([]pricepackagedomain.ExcludedService, 0, len(snapshot.ExcludedServices))
	for _, rec := range snapshot.ExcludedServices {
		item := pricepackagedomain.ExcludedFromRecord(provider, rec)
		item.ID = s.genID.Generate()
		item.Company = company
		item.FacilityCode = snapshot.FacilityCode
		item.LogID = snapshot.LogID
		item.SnapshotAt = now
		excluded = append(excluded, item)
	}

	err = db.Transaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := s.repo.ReplacePackages(ctx, tx, provider.String(), company, packages); err != nil {
			return fmt.Errorf("replace price packages: %w", err)
		}
		if provider == providerdomain.NHIF {
			if err := s.repo.ReplaceExcluded(ctx, tx, provider.String(), company, excluded); err != nil {
				return fmt.Errorf("replace excluded services: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordSnapshotSync(ctx, provider.String(), "failed")
		return nil, err
	}

	result := &pricepackagedomain.SyncResult{
		Provider: provider.String(),
		Company:  company,
		LogID:    snapshot.LogID,
		Packages: len(packages),
		Excluded: len(excluded),
	}

	update, err := s.RecordDiff(ctx, provider, company)
	if err != nil {
		// The packages are already replaced; a failed diff only loses the update record.
		log.Error("failed to compute price package diff", zap.Error(err))
	} else {
		result.Update = update
	}

	s.metrics.RecordSnapshotSync(ctx, provider.String(), "success")
	log.Info("price packages synced",
		zap.Int("packages", result.Packages),
		zap.Int("excluded_services", result.Excluded),
		zap.Bool("has_update", result.Update != nil),
	)
	return result, nil
}

// snapshotWindow bounds how many successful logs are scanned for the two
// latest usable snapshots.
const snapshotWindow = 10

type snapshot struct {
	log      *logdomain.ResponseLog
	packages []snapshotdiff.Record
	excluded []snapshotdiff.Record
}

func (s *Service) PreviewDiff(ctx context.Context, provider providerdomain.Provider, company string) (*pricepackagedomain.PackageUpdate, error) {
	update, _, err := s.buildDiff(ctx, provider, company)
	return update, err
}

func (s *Service) RecordDiff(ctx context.Context, provider providerdomain.Provider, company string) (*pricepackagedomain.PackageUpdate, error) {
	update, diffs, err := s.buildDiff(ctx, provider, company)
	if err != nil || update == nil {
		return nil, err
	}
	if err := s.repo.InsertUpdate(ctx, s.db, update); err != nil {
		return nil, fmt.Errorf("insert package update: %w", err)
	}
	for _, diff := range diffs {
		s.observeDiff(ctx, provider, diff)
	}
	return update, nil
}

func (s *Service) buildDiff(ctx context.Context, provider providerdomain.Provider, company string) (*pricepackagedomain.PackageUpdate, []snapshotdiff.Result[snapshotdiff.Record], error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, nil, pricepackagedomain.ErrInvalidCompany
	}
	snapshots, err := s.latestSnapshots(ctx, provider, company)
	if err != nil {
		return nil, nil, err
	}
	if len(snapshots) < 2 {
		return nil, nil, nil
	}
	current, previous := snapshots[0], snapshots[1]

	update := &pricepackagedomain.PackageUpdate{
		ID:            s.genID.Generate(),
		Provider:      provider.String(),
		Company:       company,
		CurrentLogID:  current.log.ID,
		PreviousLogID: previous.log.ID,
		CreatedAt:     s.clock.Now(),
	}

	packageDiff := snapshotdiff.Compute(current.packages, previous.packages,
		snapshotdiff.KeyBy(providerdomain.PackageKey(provider)), snapshotdiff.RecordsEqual)
	if err := s.appendRows(update, pricepackagedomain.SectionPricePackage, packageDiff); err != nil {
		return nil, nil, err
	}
	diffs := []snapshotdiff.Result[snapshotdiff.Record]{packageDiff}

	if provider == providerdomain.NHIF {
		excludedDiff := snapshotdiff.Compute(current.excluded, previous.excluded,
			snapshotdiff.KeyBy(providerdomain.KeyItemCode), snapshotdiff.RecordsEqual)
		if err := s.appendRows(update, pricepackagedomain.SectionExcludedServices, excludedDiff); err != nil {
			return nil, nil, err
		}
		diffs = append(diffs, excludedDiff)
	}

	if len(update.Rows) == 0 {
		return nil, nil, nil
	}
	return update, diffs, nil
}

// latestSnapshots returns up to two of the newest successful price responses
// that decode to at least one package. Error bodies and empty lists are not
// snapshots.
func (s *Service) latestSnapshots(ctx context.Context, provider providerdomain.Provider, company string) ([]snapshot, error) {
	requestType := providerdomain.PriceRequestType(provider)
	logs, err := s.logs.LatestSuccessful(ctx, provider.String(), company, requestType, snapshotWindow)
	if err != nil {
		return nil, err
	}
	log := logger.WithProvider(logger.WithContext(ctx, s.log), provider.String(), company)

	out := make([]snapshot, 0, 2)
	for i := range logs {
		packages, excluded, err := s.decodeLog(provider, &logs[i])
		if err != nil {
			log.Warn("skipping undecodable price response", zap.String("log_id", logs[i].ID.String()), zap.Error(err))
			continue
		}
		if len(packages) == 0 {
			continue
		}
		out = append(out, snapshot{log: &logs[i], packages: packages, excluded: excluded})
		if len(out) == 2 {
			break
		}
	}
	return out, nil
}

func (s *Service) ListUpdates(ctx context.Context, provider providerdomain.Provider, company string) ([]pricepackagedomain.PackageUpdate, error) {
	if strings.TrimSpace(company) == "" {
		return nil, pricepackagedomain.ErrInvalidCompany
	}
	return s.repo.ListUpdates(ctx, s.db, provider.String(), company, 20)
}

func (s *Service) ListPackages(ctx context.Context, provider providerdomain.Provider, company string) ([]pricepackagedomain.PricePackage, error) {
	if strings.TrimSpace(company) == "" {
		return nil, pricepackagedomain.ErrInvalidCompany
	}
	return s.repo.ListPackages(ctx, s.db, provider.String(), company)
}

func (s *Service) ListExcluded(ctx context.Context, provider providerdomain.Provider, company string) ([]pricepackagedomain.ExcludedService, error) {
	if strings.TrimSpace(company) == "" {
		return nil, pricepackagedomain.ErrInvalidCompany
	}
	return s.repo.ListExcluded(ctx, s.db, provider.String(), company)
}

func (s *Service) decodeLog(provider providerdomain.Provider, entry *logdomain.ResponseLog) ([]snapshotdiff.Record, []snapshotdiff.Record, error) {
	payload, err := s.logs.Payload(entry)
	if err != nil {
		return nil, nil, fmt.Errorf("read response log %s: %w", entry.ID, err)
	}
	packages, excluded, err := providerdomain.DecodePricePayload(provider, payload)
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("response log %s", entry.ID), err)
	}
	return packages, excluded, nil
}

func (s *Service) appendRows(update *pricepackagedomain.PackageUpdate, section pricepackagedomain.Section, diff snapshotdiff.Result[snapshotdiff.Record]) error {
	groups := []struct {
		kind    pricepackagedomain.ChangeType
		records []snapshotdiff.Record
	}{
		{pricepackagedomain.Changed, diff.Changed},
		{pricepackagedomain.New, diff.New},
		{pricepackagedomain.Deleted, diff.Deleted},
	}
	for _, group := range groups {
		for _, rec := range group.records {
			raw, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode %s row: %w", section, err)
			}
			update.Rows = append(update.Rows, pricepackagedomain.PackageUpdateRow{
				ID:         s.genID.Generate(),
				UpdateID:   update.ID,
				Section:    section,
				ChangeType: group.kind,
				ItemCode:   rec.String("ItemCode"),
				PriceCode:  rec.String("PriceCode"),
				SchemeID:   rec.String("SchemeID"),
				Record:     datatypes.JSON(raw),
			})
		}
	}
	return nil
}

func (s *Service) observeDiff(ctx context.Context, provider providerdomain.Provider, diff snapshotdiff.Result[snapshotdiff.Record]) {
	s.metrics.RecordDiffRows(ctx, provider.String(), string(pricepackagedomain.Changed), len(diff.Changed))
	s.metrics.RecordDiffRows(ctx, provider.String(), string(pricepackagedomain.New), len(diff.New))
	s.metrics.RecordDiffRows(ctx, provider.String(), string(pricepackagedomain.Deleted), len(diff.Deleted))
}
