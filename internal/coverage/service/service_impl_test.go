package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/hmsinsure/internal/clock"
	coveragedomain "github.com/smallbiznis/hmsinsure/internal/coverage/domain"
	"github.com/smallbiznis/hmsinsure/internal/coverage/repository"
	pricepackagedomain "github.com/smallbiznis/hmsinsure/internal/pricepackage/domain"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"github.com/smallbiznis/hmsinsure/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const company = "Aga Khan Hospital"

type stubPackages struct {
	packages []pricepackagedomain.PricePackage
	excluded []pricepackagedomain.ExcludedService
}

func (s *stubPackages) Sync(context.Context, providerdomain.Provider, string) (*pricepackagedomain.SyncResult, error) {
	return nil, nil
}

func (s *stubPackages) PreviewDiff(context.Context, providerdomain.Provider, string) (*pricepackagedomain.PackageUpdate, error) {
	return nil, nil
}

func (s *stubPackages) RecordDiff(context.Context, providerdomain.Provider, string) (*pricepackagedomain.PackageUpdate, error) {
	return nil, nil
}

func (s *stubPackages) ListUpdates(context.Context, providerdomain.Provider, string) ([]pricepackagedomain.PackageUpdate, error) {
	return nil, nil
}

func (s *stubPackages) ListPackages(_ context.Context, p providerdomain.Provider, _ string) ([]pricepackagedomain.PricePackage, error) {
	var out []pricepackagedomain.PricePackage
	for _, pkg := range s.packages {
		if pkg.Provider == p.String() {
			out = append(out, pkg)
		}
	}
	return out, nil
}

func (s *stubPackages) ListExcluded(_ context.Context, p providerdomain.Provider, _ string) ([]pricepackagedomain.ExcludedService, error) {
	var out []pricepackagedomain.ExcludedService
	for _, ex := range s.excluded {
		if ex.Provider == p.String() {
			out = append(out, ex)
		}
	}
	return out, nil
}

func intPtr(v int) *int { return &v }

func newTestService(t *testing.T, packages *stubPackages) *Service {
	t.Helper()

	db := dbtest.Open(t,
		&coveragedomain.Plan{},
		&coveragedomain.ServiceTemplate{},
		&coveragedomain.ItemReference{},
		&coveragedomain.Coverage{},
	)
	return New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    dbtest.Node(t),
		Repo:     repository.Provide(),
		Packages: packages,
		Clock:    clock.NewFakeClock(time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)),
	}).(*Service)
}

func seedCatalog(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()

	for _, plan := range []coveragedomain.CreatePlanRequest{
		{Name: "NHIF-TOTO", Company: company, Provider: "nhif", SchemeID: "1001"},
		{Name: "NHIF-WEKEZA", Company: company, Provider: "NHIF", SchemeID: "1001"},
		{Name: "NHIF-OLD", Company: company, Provider: "NHIF", SchemeID: "1001", IsActive: new(bool)},
	} {
		_, err := svc.CreatePlan(ctx, plan)
		require.NoError(t, err)
	}

	for _, tmpl := range []coveragedomain.RegisterTemplateRequest{
		{ServiceType: coveragedomain.LabTestTemplate, Name: "Full Blood Count", ItemCode: "LAB-FBC"},
		{ServiceType: coveragedomain.Medication, Name: "Paracetamol 500mg", ItemCode: "MED-PARA"},
		{ServiceType: coveragedomain.RadiologyExamination, Name: "Chest X-Ray", ItemCode: "RAD-CXR", Disabled: true},
	} {
		_, err := svc.RegisterTemplate(ctx, tmpl)
		require.NoError(t, err)
	}

	for _, ref := range []coveragedomain.RegisterItemReferenceRequest{
		{ItemCode: "LAB-FBC", Provider: "NHIF", RefCode: "1001"},
		{ItemCode: "MED-PARA", Provider: "NHIF", RefCode: "2002"},
		{ItemCode: "RAD-CXR", Provider: "NHIF", RefCode: "3003"},
	} {
		_, err := svc.RegisterItemReference(ctx, ref)
		require.NoError(t, err)
	}
}

func nhifPackages() *stubPackages {
	return &stubPackages{
		packages: []pricepackagedomain.PricePackage{
			{Provider: "NHIF", ItemCode: "1001", SchemeID: "1001", UnitPrice: 12000, MaximumQuantity: intPtr(-1)},
			{Provider: "NHIF", ItemCode: "1001", SchemeID: "2000", UnitPrice: 9000},
			{Provider: "NHIF", ItemCode: "2002", SchemeID: "1001", UnitPrice: 300, IsRestricted: true, MaximumQuantity: intPtr(5)},
			{Provider: "NHIF", ItemCode: "3003", SchemeID: "1001", UnitPrice: 40000},
		},
		excluded: []pricepackagedomain.ExcludedService{
			{Provider: "NHIF", ItemCode: "2002", SchemeID: "1001", ExcludedForProducts: "NHIF-WEKEZA, NHIF-IMARA"},
		},
	}
}

func TestMaterializeBuildsRowsPerActivePlan(t *testing.T) {
	svc := newTestService(t, nhifPackages())
	seedCatalog(t, svc)
	ctx := context.Background()

	result, err := svc.Materialize(ctx, providerdomain.NHIF, company, "")
	require.NoError(t, err)
	require.Len(t, result.Plans, 2)

	toto, err := svc.ListCoverages(ctx, "NHIF-TOTO")
	require.NoError(t, err)
	require.Len(t, toto, 2)

	lab := toto[0]
	assert.Equal(t, coveragedomain.LabTestTemplate, lab.ServiceType)
	assert.Equal(t, "Full Blood Count", lab.TemplateName)
	assert.Equal(t, float64(100), lab.Coverage)
	assert.Equal(t, 0, lab.MaximumClaims)
	assert.False(t, lab.ApprovalMandatory)
	assert.True(t, lab.IsAutoGenerated)
	assert.Equal(t, "2024-05-14", lab.StartDate.Format("2006-01-02"))
	assert.Equal(t, "2099-12-31", lab.EndDate.Format("2006-01-02"))

	med := toto[1]
	assert.Equal(t, coveragedomain.Medication, med.ServiceType)
	assert.True(t, med.ApprovalMandatory)
	assert.True(t, med.ManualApprovalOnly)
	assert.Equal(t, 5, med.MaximumClaims)

	wekeza, err := svc.ListCoverages(ctx, "NHIF-WEKEZA")
	require.NoError(t, err)
	require.Len(t, wekeza, 1)
	assert.Equal(t, "Full Blood Count", wekeza[0].TemplateName)
	assert.Equal(t, 1, result.Plans[1].Excluded)

	inactive, err := svc.ListCoverages(ctx, "NHIF-OLD")
	require.NoError(t, err)
	assert.Empty(t, inactive)
}

func TestMaterializeIsRepeatableAndKeepsManualRows(t *testing.T) {
	svc := newTestService(t, nhifPackages())
	seedCatalog(t, svc)
	ctx := context.Background()

	manual, err := svc.CreateManual(ctx, coveragedomain.CreateCoverageRequest{
		PlanName:     "NHIF-TOTO",
		ServiceType:  coveragedomain.AppointmentType,
		TemplateName: "Specialist Consultation",
		Coverage:     80,
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.False(t, manual.IsAutoGenerated)

	first, err := svc.Materialize(ctx, providerdomain.NHIF, company, "NHIF-TOTO")
	require.NoError(t, err)
	require.Len(t, first.Plans, 1)
	assert.Equal(t, int64(0), first.Plans[0].Deleted)

	second, err := svc.Materialize(ctx, providerdomain.NHIF, company, "NHIF-TOTO")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Plans[0].Deleted)
	assert.Equal(t, first.Plans[0].Inserted, second.Plans[0].Inserted)

	rows, err := svc.ListCoverages(ctx, "NHIF-TOTO")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var manualRows int
	for _, row := range rows {
		if !row.IsAutoGenerated {
			manualRows++
			assert.Equal(t, manual.ID, row.ID)
		}
	}
	assert.Equal(t, 1, manualRows)
}

func TestMaterializeSkipsMalformedEntries(t *testing.T) {
	packages := &stubPackages{packages: []pricepackagedomain.PricePackage{
		{Provider: "NHIF", ItemCode: "1001", SchemeID: ""},
		{Provider: "NHIF", ItemCode: "2002", SchemeID: "1001"},
	}}
	svc := newTestService(t, packages)
	ctx := context.Background()

	_, err := svc.CreatePlan(ctx, coveragedomain.CreatePlanRequest{Name: "NHIF-ANY", Company: company, Provider: "NHIF"})
	require.NoError(t, err)
	_, err = svc.CreatePlan(ctx, coveragedomain.CreatePlanRequest{Name: "NHIF-TOTO", Company: company, Provider: "NHIF", SchemeID: "1001"})
	require.NoError(t, err)
	_, err = svc.RegisterTemplate(ctx, coveragedomain.RegisterTemplateRequest{ServiceType: coveragedomain.LabTestTemplate, Name: "FBC", ItemCode: "LAB-FBC"})
	require.NoError(t, err)
	_, err = svc.RegisterTemplate(ctx, coveragedomain.RegisterTemplateRequest{ServiceType: coveragedomain.Medication, Name: "Paracetamol", ItemCode: "MED-PARA"})
	require.NoError(t, err)
	_, err = svc.RegisterItemReference(ctx, coveragedomain.RegisterItemReferenceRequest{ItemCode: "LAB-FBC", Provider: "NHIF", RefCode: "1001"})
	require.NoError(t, err)
	_, err = svc.RegisterItemReference(ctx, coveragedomain.RegisterItemReferenceRequest{ItemCode: "MED-PARA", Provider: "NHIF", RefCode: "2002"})
	require.NoError(t, err)

	result, err := svc.Materialize(ctx, providerdomain.NHIF, company, "")
	require.NoError(t, err)
	require.Len(t, result.Plans, 2)
	// the package without a scheme only reaches the plan without one, where it is malformed
	assert.Equal(t, "NHIF-ANY", result.Plans[0].Plan)
	assert.Equal(t, 1, result.Plans[0].Skipped)
	assert.Equal(t, 0, result.Plans[0].Inserted)
	assert.Equal(t, "NHIF-TOTO", result.Plans[1].Plan)
	assert.Equal(t, 0, result.Plans[1].Skipped)
	assert.Equal(t, 1, result.Plans[1].Inserted)
}

func TestNHIFPlanMatchesSchemeStrictly(t *testing.T) {
	packages := &stubPackages{packages: []pricepackagedomain.PricePackage{
		{Provider: "NHIF", ItemCode: "1001", SchemeID: "2000", UnitPrice: 9000},
		{Provider: "NHIF", ItemCode: "1001", SchemeID: "1001", UnitPrice: 12000},
	}}
	svc := newTestService(t, packages)
	ctx := context.Background()

	_, err := svc.CreatePlan(ctx, coveragedomain.CreatePlanRequest{Name: "NHIF-ANY", Company: company, Provider: "NHIF"})
	require.NoError(t, err)
	_, err = svc.RegisterTemplate(ctx, coveragedomain.RegisterTemplateRequest{ServiceType: coveragedomain.LabTestTemplate, Name: "FBC", ItemCode: "LAB-FBC"})
	require.NoError(t, err)
	_, err = svc.RegisterItemReference(ctx, coveragedomain.RegisterItemReferenceRequest{ItemCode: "LAB-FBC", Provider: "NHIF", RefCode: "1001"})
	require.NoError(t, err)

	result, err := svc.Materialize(ctx, providerdomain.NHIF, company, "")
	require.NoError(t, err)
	require.Len(t, result.Plans, 1)
	assert.Equal(t, 0, result.Plans[0].Inserted)
	assert.Equal(t, 0, result.Plans[0].Skipped)

	rows, err := svc.ListCoverages(ctx, "NHIF-ANY")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestJubileePlanWithoutSchemeTakesFirstPackage(t *testing.T) {
	packages := &stubPackages{packages: []pricepackagedomain.PricePackage{
		{Provider: "Jubilee", ItemCode: "C001", SchemeID: "GOLD", UnitPrice: 25000},
	}}
	svc := newTestService(t, packages)
	ctx := context.Background()

	_, err := svc.CreatePlan(ctx, coveragedomain.CreatePlanRequest{Name: "Jubilee Corporate", Company: company, Provider: "Jubilee"})
	require.NoError(t, err)
	_, err = svc.RegisterTemplate(ctx, coveragedomain.RegisterTemplateRequest{ServiceType: coveragedomain.AppointmentType, Name: "Consultation", ItemCode: "CONSULT"})
	require.NoError(t, err)
	_, err = svc.RegisterItemReference(ctx, coveragedomain.RegisterItemReferenceRequest{ItemCode: "CONSULT", Provider: "Jubilee", RefCode: "C001"})
	require.NoError(t, err)

	result, err := svc.Materialize(ctx, providerdomain.Jubilee, company, "")
	require.NoError(t, err)
	require.Len(t, result.Plans, 1)
	assert.Equal(t, 1, result.Plans[0].Inserted)
}

func TestMaterializeWithoutActivePlan(t *testing.T) {
	svc := newTestService(t, nhifPackages())
	seedCatalog(t, svc)

	_, err := svc.Materialize(context.Background(), providerdomain.Jubilee, company, "")
	assert.ErrorIs(t, err, coveragedomain.ErrNoActivePlan)
}

func TestCreateManualValidation(t *testing.T) {
	svc := newTestService(t, nhifPackages())
	seedCatalog(t, svc)
	ctx := context.Background()

	_, err := svc.CreateManual(ctx, coveragedomain.CreateCoverageRequest{
		PlanName:     "NHIF-TOTO",
		ServiceType:  coveragedomain.Medication,
		TemplateName: "Amoxicillin",
		Coverage:     120,
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, coveragedomain.ErrInvalidRequest)

	_, err = svc.CreateManual(ctx, coveragedomain.CreateCoverageRequest{
		PlanName:     "UNKNOWN",
		ServiceType:  coveragedomain.Medication,
		TemplateName: "Amoxicillin",
		Coverage:     50,
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, coveragedomain.ErrPlanNotFound)

	_, err = svc.CreatePlan(ctx, coveragedomain.CreatePlanRequest{Name: "NHIF-TOTO", Company: company, Provider: "NHIF"})
	assert.ErrorIs(t, err, coveragedomain.ErrPlanExists)
}
