package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	coveragedomain "github.com/smallbiznis/hmsinsure/internal/coverage/domain"
	"github.com/smallbiznis/hmsinsure/internal/observability/logger"
	"github.com/smallbiznis/hmsinsure/internal/observability/metrics"
	pricepackagedomain "github.com/smallbiznis/hmsinsure/internal/pricepackage/domain"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"github.com/smallbiznis/hmsinsure/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const fullCoverage = 100

// openEnded is the end date of generated coverages.
var openEnded = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     coveragedomain.Repository
	Packages pricepackagedomain.Service
	Clock    clock.Clock
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     coveragedomain.Repository
	packages pricepackagedomain.Service
	clock    clock.Clock
	metrics  *metrics.Metrics
	validate *validator.Validate
}

func New(p Params) coveragedomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("coverage.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		packages: p.Packages,
		clock:    p.Clock,
		metrics:  p.Metrics,
		validate: validator.New(),
	}
}

// candidate is one template priced by the provider, checked before it becomes a coverage row.
type candidate struct {
	ServiceType  coveragedomain.ServiceType `validate:"required"`
	TemplateName string                     `validate:"required"`
	RefCode      string                     `validate:"required"`
	SchemeID     string                     `validate:"required_if=SchemeRequired true"`

	// SchemeRequired is set for plans bound to a scheme and for providers that price per scheme.
	SchemeRequired bool
}

func (s *Service) Materialize(ctx context.Context, provider providerdomain.Provider, company, planName string) (*coveragedomain.MaterializeResult, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, coveragedomain.ErrInvalidCompany
	}
	log := logger.WithProvider(logger.WithContext(ctx, s.log), provider.String(), company)

	plans, err := s.repo.ListActivePlans(ctx, s.db, provider.String(), company, planName)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, coveragedomain.ErrNoActivePlan
	}

	items, err := s.repo.ListCoverageItems(ctx, s.db, provider.String())
	if err != nil {
		return nil, err
	}
	packages, err := s.packages.ListPackages(ctx, provider, company)
	if err != nil {
		return nil, err
	}
	excluded, err := s.packages.ListExcluded(ctx, provider, company)
	if err != nil {
		return nil, err
	}

	byItem := make(map[string][]pricepackagedomain.PricePackage, len(packages))
	for _, pkg := range packages {
		byItem[pkg.ItemCode] = append(byItem[pkg.ItemCode], pkg)
	}
	exclusions := make(map[string][]pricepackagedomain.ExcludedService, len(excluded))
	for _, ex := range excluded {
		exclusions[ex.ItemCode] = append(exclusions[ex.ItemCode], ex)
	}

	result := &coveragedomain.MaterializeResult{Provider: provider.String(), Company: company}
	for _, plan := range plans {
		planResult, err := s.materializePlan(ctx, log, plan, items, byItem, exclusions)
		if err != nil {
			return nil, fmt.Errorf("materialize plan %s: %w", plan.Name, err)
		}
		result.Plans = append(result.Plans, *planResult)
		s.metrics.RecordCoverageRows(ctx, provider.String(), planResult.Inserted)
	}
	return result, nil
}

func (s *Service) materializePlan(
	ctx context.Context,
	log *zap.Logger,
	plan coveragedomain.Plan,
	items []coveragedomain.CoverageItem,
	byItem map[string][]pricepackagedomain.PricePackage,
	exclusions map[string][]pricepackagedomain.ExcludedService,
) (*coveragedomain.PlanResult, error) {
	now := s.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	planResult := &coveragedomain.PlanResult{Plan: plan.Name}

	seen := make(map[string]struct{}, len(items))
	rows := make([]coveragedomain.Coverage, 0, len(items))
	for _, item := range items {
		pkg, ok := pickPackage(byItem[item.RefCode], plan)
		if !ok {
			continue
		}

		c := candidate{
			ServiceType:    item.ServiceType,
			TemplateName:   item.TemplateName,
			RefCode:        item.RefCode,
			SchemeID:       pkg.SchemeID,
			SchemeRequired: plan.SchemeID != "" || plan.Provider == providerdomain.NHIF.String(),
		}
		if err := s.validate.Struct(c); err != nil {
			planResult.Skipped++
			log.Warn("skipping malformed price entry",
				zap.String("plan", plan.Name),
				zap.String("template", item.TemplateName),
				zap.String("ref_code", item.RefCode),
				zap.Error(err),
			)
			continue
		}
		if isExcluded(exclusions[item.RefCode], plan) {
			planResult.Excluded++
			continue
		}

		key := string(item.ServiceType) + "\x00" + item.TemplateName
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		rows = append(rows, coveragedomain.Coverage{
			ID:                 s.genID.Generate(),
			Company:            plan.Company,
			PlanName:           plan.Name,
			ServiceType:        item.ServiceType,
			TemplateName:       item.TemplateName,
			Coverage:           fullCoverage,
			StartDate:          today,
			EndDate:            openEnded,
			IsActive:           true,
			IsAutoGenerated:    true,
			ApprovalMandatory:  pkg.IsRestricted,
			ManualApprovalOnly: pkg.IsRestricted,
			MaximumClaims:      maximumClaims(pkg.MaximumQuantity),
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	}

	err := db.Transaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		deleted, err := s.repo.DeleteAutoGenerated(ctx, tx, plan.Name, plan.Company)
		if err != nil {
			return err
		}
		planResult.Deleted = deleted
		return s.repo.InsertCoverages(ctx, tx, rows)
	})
	if err != nil {
		return nil, err
	}
	planResult.Inserted = len(rows)

	log.Info("coverages materialized",
		zap.String("plan", plan.Name),
		zap.Int64("deleted", planResult.Deleted),
		zap.Int("inserted", planResult.Inserted),
		zap.Int("excluded", planResult.Excluded),
		zap.Int("skipped", planResult.Skipped),
	)
	return planResult, nil
}

// pickPackage returns the first package priced for the plan's scheme. NHIF
// prices per scheme, so an NHIF plan without one only takes packages without
// one; other plans without a scheme take the first package of the item.
func pickPackage(pkgs []pricepackagedomain.PricePackage, plan coveragedomain.Plan) (pricepackagedomain.PricePackage, bool) {
	anyScheme := plan.SchemeID == "" && plan.Provider != providerdomain.NHIF.String()
	for _, pkg := range pkgs {
		if anyScheme || pkg.SchemeID == plan.SchemeID {
			return pkg, true
		}
	}
	return pricepackagedomain.PricePackage{}, false
}

// isExcluded reports whether the plan is listed in the excluded products of
// the item for the plan's scheme.
func isExcluded(rows []pricepackagedomain.ExcludedService, plan coveragedomain.Plan) bool {
	for _, row := range rows {
		if row.SchemeID != "" && plan.SchemeID != "" && row.SchemeID != plan.SchemeID {
			continue
		}
		for _, product := range strings.Split(row.ExcludedForProducts, ",") {
			if strings.EqualFold(strings.TrimSpace(product), plan.Name) {
				return true
			}
		}
	}
	return false
}

// maximumClaims maps the provider quantity limit; -1 and missing mean unlimited (0).
func maximumClaims(q *int) int {
	if q == nil || *q < 0 {
		return 0
	}
	return *q
}

func (s *Service) ListCoverages(ctx context.Context, planName string) ([]coveragedomain.Coverage, error) {
	planName = strings.TrimSpace(planName)
	if planName == "" {
		return nil, coveragedomain.ErrPlanNotFound
	}
	return s.repo.ListCoverages(ctx, s.db, planName)
}

func (s *Service) CreateManual(ctx context.Context, req coveragedomain.CreateCoverageRequest) (*coveragedomain.Coverage, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", coveragedomain.ErrInvalidRequest, err)
	}
	if !req.ServiceType.Valid() {
		return nil, coveragedomain.ErrInvalidServiceType
	}

	plan, err := s.repo.FindPlan(ctx, s.db, strings.TrimSpace(req.PlanName))
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, coveragedomain.ErrPlanNotFound
	}

	now := s.clock.Now()
	entity := coveragedomain.Coverage{
		ID:                 s.genID.Generate(),
		Company:            plan.Company,
		PlanName:           plan.Name,
		ServiceType:        req.ServiceType,
		TemplateName:       strings.TrimSpace(req.TemplateName),
		Coverage:           req.Coverage,
		Discount:           req.Discount,
		StartDate:          req.StartDate.UTC(),
		EndDate:            req.EndDate.UTC(),
		IsActive:           true,
		ApprovalMandatory:  req.ApprovalMandatory,
		ManualApprovalOnly: req.ManualApprovalOnly,
		MaximumClaims:      req.MaximumClaims,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.InsertCoverages(ctx, s.db, []coveragedomain.Coverage{entity}); err != nil {
		return nil, err
	}
	return &entity, nil
}

func (s *Service) CreatePlan(ctx context.Context, req coveragedomain.CreatePlanRequest) (*coveragedomain.Plan, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", coveragedomain.ErrInvalidRequest, err)
	}
	provider, err := providerdomain.ParseProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	plan := &coveragedomain.Plan{
		ID:        s.genID.Generate(),
		Name:      strings.TrimSpace(req.Name),
		Company:   strings.TrimSpace(req.Company),
		Provider:  provider.String(),
		SchemeID:  strings.TrimSpace(req.SchemeID),
		IsActive:  req.IsActive == nil || *req.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertPlan(ctx, s.db, plan); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, coveragedomain.ErrPlanExists
		}
		return nil, err
	}
	return plan, nil
}

func (s *Service) RegisterTemplate(ctx context.Context, req coveragedomain.RegisterTemplateRequest) (*coveragedomain.ServiceTemplate, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", coveragedomain.ErrInvalidRequest, err)
	}
	if !req.ServiceType.Valid() {
		return nil, coveragedomain.ErrInvalidServiceType
	}

	template := &coveragedomain.ServiceTemplate{
		ID:          s.genID.Generate(),
		ServiceType: req.ServiceType,
		Name:        strings.TrimSpace(req.Name),
		ItemCode:    strings.TrimSpace(req.ItemCode),
		Disabled:    req.Disabled,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.InsertTemplate(ctx, s.db, template); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, coveragedomain.ErrDuplicate
		}
		return nil, err
	}
	return template, nil
}

func (s *Service) RegisterItemReference(ctx context.Context, req coveragedomain.RegisterItemReferenceRequest) (*coveragedomain.ItemReference, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", coveragedomain.ErrInvalidRequest, err)
	}
	provider, err := providerdomain.ParseProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	ref := &coveragedomain.ItemReference{
		ID:        s.genID.Generate(),
		ItemCode:  strings.TrimSpace(req.ItemCode),
		Provider:  provider.String(),
		RefCode:   strings.TrimSpace(req.RefCode),
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertItemReference(ctx, s.db, ref); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, coveragedomain.ErrDuplicate
		}
		return nil, err
	}
	return ref, nil
}
