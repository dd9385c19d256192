package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	claimdomain "github.com/smallbiznis/hmsinsure/internal/claim/domain"
	"github.com/smallbiznis/hmsinsure/internal/claim/repository"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/internal/config"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"github.com/smallbiznis/hmsinsure/internal/providers/pdf"
	"github.com/smallbiznis/hmsinsure/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const company = "Aga Khan Hospital"

type fakeRenderer struct{ calls int }

func (r *fakeRenderer) RenderClaim(_ context.Context, doc pdf.ClaimDocument) ([]byte, error) {
	r.calls++
	return []byte("%PDF-" + doc.ClaimID), nil
}

type fakeClient struct {
	folios []providerdomain.Folio
	refs   []providerdomain.Reference
	err    error
}

func (c *fakeClient) Provider() providerdomain.Provider { return providerdomain.Jubilee }

func (c *fakeClient) FetchPriceSnapshot(context.Context, string) (*providerdomain.PriceSnapshot, error) {
	return nil, errors.New("not used")
}

func (c *fakeClient) SubmitFolio(_ context.Context, _ string, folio providerdomain.Folio, ref providerdomain.Reference) (*providerdomain.SubmitResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.folios = append(c.folios, folio)
	c.refs = append(c.refs, ref)
	return &providerdomain.SubmitResult{Status: "OK", Description: "received", LogID: 99}, nil
}

type registry struct{ client providerdomain.Client }

func (r registry) Get(providerdomain.Provider) (providerdomain.Client, error) { return r.client, nil }

type fixture struct {
	svc      *Service
	client   *fakeClient
	renderer *fakeRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.Open(t,
		&claimdomain.Appointment{},
		&claimdomain.Claim{},
		&claimdomain.ClaimItem{},
		&claimdomain.ClaimDisease{},
		&claimdomain.FolioCounter{},
	)
	client := &fakeClient{}
	renderer := &fakeRenderer{}
	settings := config.StaticSettings{Providers: []config.ProviderSetting{{
		Company:          company,
		CompanyAbbr:      "AKH",
		Provider:         config.ProviderJubilee,
		Enabled:          true,
		ProviderID:       "P-1",
		SubmitClaimMonth: 5,
		SubmitClaimYear:  2024,
	}}}

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    dbtest.Node(t),
		Repo:     repository.Provide(),
		Registry: registry{client: client},
		Renderer: renderer,
		Settings: settings,
		Clock:    clock.NewFakeClock(time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)),
	}).(*Service)
	return &fixture{svc: svc, client: client, renderer: renderer}
}

func (f *fixture) appointment(t *testing.T, name, patient, auth string) {
	t.Helper()
	_, err := f.svc.RegisterAppointment(context.Background(), claimdomain.RegisterAppointmentRequest{
		Name: name, Patient: patient, Provider: "jubilee", Company: company,
		AuthorizationNumber: auth, CardNo: "CARD-" + patient,
	})
	require.NoError(t, err)
}

func claimRequest(appointment, patient, auth string, items ...claimdomain.ItemInput) claimdomain.CreateClaimRequest {
	return claimdomain.CreateClaimRequest{
		Provider:        "Jubilee",
		Company:         company,
		Patient:         patient,
		PatientName:     "Amina Juma",
		Appointment:     appointment,
		AuthorizationNo: auth,
		CardNo:          "CARD-" + patient,
		AttendanceDate:  time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		PatientTypeCode: "OUT",
		Items:           items,
		Diseases:        []claimdomain.DiseaseInput{{DiseaseCode: "B54"}},
	}
}

func item(code string, qty, price float64) claimdomain.ItemInput {
	return claimdomain.ItemInput{ItemCode: code, ItemName: "Item " + code, ItemQuantity: qty, UnitPrice: price}
}

func TestCreateAllocatesFolioNumbersAndSnapshotsItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.appointment(t, "APP-1", "PT-1", "AUTH-1")
	f.appointment(t, "APP-2", "PT-2", "AUTH-2")

	first, err := f.svc.Create(ctx, claimRequest("APP-1", "PT-1", "AUTH-1", item("A", 2, 500), item("B", 1, 1000)))
	require.NoError(t, err)
	assert.Equal(t, 1, first.FolioNo)
	assert.Equal(t, claimdomain.StatusDraft, first.Status)
	assert.Equal(t, float64(2000), first.TotalAmount)
	assert.Equal(t, 5, first.ClaimMonth)
	assert.NotEmpty(t, first.FolioID)

	second, err := f.svc.Create(ctx, claimRequest("APP-2", "PT-2", "AUTH-2", item("A", 1, 500)))
	require.NoError(t, err)
	assert.Equal(t, 2, second.FolioNo)

	loaded, err := f.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	require.Len(t, loaded.OriginalItems, 2)
	assert.Equal(t, "A", loaded.Items[0].ItemCode)
	assert.True(t, loaded.OriginalItems[0].Original)
	assert.NotEqual(t, loaded.Items[0].ID, loaded.OriginalItems[0].ID)
	require.Len(t, loaded.Diseases, 1)
	assert.Equal(t, "Final", loaded.Diseases[0].Status)
}

func TestCreateRejectsDuplicatesAndMismatchedAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.appointment(t, "APP-1", "PT-1", "AUTH-1")

	_, err := f.svc.Create(ctx, claimRequest("APP-1", "PT-1", "AUTH-1", item("A", 1, 100)))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, claimRequest("APP-1", "PT-1", "AUTH-1", item("A", 1, 100)))
	assert.ErrorIs(t, err, claimdomain.ErrClaimExists)

	_, err = f.svc.Create(ctx, claimRequest("APP-404", "PT-9", "AUTH-9"))
	var guardErr *claimdomain.GuardError
	require.True(t, errors.As(err, &guardErr))
	assert.Equal(t, claimdomain.GuardAppointmentMatches, guardErr.Guard)

	_, err = f.svc.Get(ctx, 42)
	assert.ErrorIs(t, err, claimdomain.ErrClaimNotFound)
}

func TestValidateAndSubmitSendsFolio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.appointment(t, "APP-1", "PT-1", "AUTH-1")

	claim, err := f.svc.Create(ctx, claimRequest("APP-1", "PT-1", "AUTH-1", item("A", 2, 500), item("B", 1, 1000)))
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, claim.ID, "clerk")
	assert.ErrorIs(t, err, claimdomain.ErrInvalidTransition)

	validated, err := f.svc.Validate(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, claimdomain.StatusValidated, validated.Status)

	submitted, err := f.svc.Submit(ctx, claim.ID, "clerk")
	require.NoError(t, err)
	assert.Equal(t, claimdomain.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmitLogID)
	assert.EqualValues(t, 99, *submitted.SubmitLogID)

	require.Len(t, f.client.folios, 1)
	entity := f.client.folios[0].Entities[0]
	assert.Equal(t, claim.FolioID, entity.FolioID)
	assert.Equal(t, 1, entity.FolioNo)
	assert.Equal(t, float64(2000), entity.AmountClaimed)
	require.NotNil(t, entity.ProviderID)
	assert.Equal(t, "P-1", *entity.ProviderID)
	assert.Len(t, entity.FolioItems, 2)
	assert.Len(t, entity.FolioDiseases, 1)
	decoded, err := base64.StdEncoding.DecodeString(entity.ClaimFile)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-"+claim.ID.String(), string(decoded))
	assert.Equal(t, providerdomain.Reference{Doctype: "Claim", Docname: claim.ID.String()}, f.client.refs[0])

	_, err = f.svc.Validate(ctx, claim.ID)
	assert.ErrorIs(t, err, claimdomain.ErrClaimSubmitted)
	_, err = f.svc.AddItems(ctx, claim.ID, []claimdomain.ItemInput{item("C", 1, 1)})
	assert.ErrorIs(t, err, claimdomain.ErrClaimSubmitted)
}

func TestSubmitFailureKeepsClaimValidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.appointment(t, "APP-1", "PT-1", "AUTH-1")

	claim, err := f.svc.Create(ctx, claimRequest("APP-1", "PT-1", "AUTH-1", item("A", 1, 500)))
	require.NoError(t, err)
	_, err = f.svc.Validate(ctx, claim.ID)
	require.NoError(t, err)

	f.client.err = &providerdomain.StatusError{Provider: providerdomain.Jubilee, RequestType: "SubmitClaim", StatusCode: 500}
	_, err = f.svc.Submit(ctx, claim.ID, "clerk")
	var statusErr *providerdomain.StatusError
	require.True(t, errors.As(err, &statusErr))

	loaded, err := f.svc.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, claimdomain.StatusValidated, loaded.Status)
	assert.Nil(t, loaded.SubmitLogID)
}

func TestSubmitBlockedByGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.appointment(t, "APP-1", "PT-1", "AUTH-1")

	draftItem := item("A", 1, 500)
	draftItem.Status = claimdomain.ItemDraft
	claim, err := f.svc.Create(ctx, claimRequest("APP-1", "PT-1", "AUTH-1", draftItem))
	require.NoError(t, err)
	_, err = f.svc.Validate(ctx, claim.ID)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, claim.ID, "clerk")
	var guardErr *claimdomain.GuardError
	require.True(t, errors.As(err, &guardErr))
	assert.Equal(t, claimdomain.GuardNoDraftItems, guardErr.Guard)
	assert.Equal(t, 0, f.renderer.calls)
	assert.Empty(t, f.client.folios)
}

func TestAddItemsReturnsClaimToDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.appointment(t, "APP-1", "PT-1", "AUTH-1")

	claim, err := f.svc.Create(ctx, claimRequest("APP-1", "PT-1", "AUTH-1", item("A", 1, 500)))
	require.NoError(t, err)
	_, err = f.svc.Validate(ctx, claim.ID)
	require.NoError(t, err)

	updated, err := f.svc.AddItems(ctx, claim.ID, []claimdomain.ItemInput{item("B", 3, 100)})
	require.NoError(t, err)
	assert.Equal(t, claimdomain.StatusDraft, updated.Status)
	assert.Equal(t, float64(800), updated.TotalAmount)

	loaded, err := f.svc.Get(ctx, claim.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, "B", loaded.Items[1].ItemCode)
	assert.Len(t, loaded.OriginalItems, 2)
}

func TestReconcileRepeatedItemsMergesAndDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.appointment(t, "APP-1", "PT-1", "AUTH-1")

	a1 := item("A", 1, 10)
	a1.RefDocname = "LAB-1"
	a2 := item("A", 2, 10)
	a2.RefDocname = "LAB-2"
	a2.ApprovalRefNo = "APR-2"
	claim, err := f.svc.Create(ctx, claimRequest("APP-1", "PT-1", "AUTH-1", a1, item("B", 1, 5), a2))
	require.NoError(t, err)
	_, err = f.svc.Validate(ctx, claim.ID)
	require.NoError(t, err)

	result, err := f.svc.ReconcileRepeatedItems(ctx, claim.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Removed)
	assert.True(t, result.Claim.AllowChanges)
	assert.Equal(t, claimdomain.StatusDraft, result.Claim.Status)
	assert.Equal(t, float64(35), result.Claim.TotalAmount)

	loaded, err := f.svc.Get(ctx, claim.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, float64(3), loaded.Items[0].ItemQuantity)
	assert.Equal(t, float64(30), loaded.Items[0].AmountClaimed)
	assert.Equal(t, "LAB-1,LAB-2", loaded.Items[0].RefDocname)
	assert.Equal(t, "APR-2", loaded.Items[0].ApprovalRefNo)
	require.Len(t, loaded.OriginalItems, 2)
	assert.Equal(t, float64(3), loaded.OriginalItems[0].ItemQuantity)

	again, err := f.svc.ReconcileRepeatedItems(ctx, claim.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, again.Removed)
}
