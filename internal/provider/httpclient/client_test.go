package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hmsinsure/internal/cache"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/internal/config"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	logdomain "github.com/smallbiznis/hmsinsure/internal/responselog/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testCompany = "Aga Khan Hospital"

type recordedLogs struct {
	mu      sync.Mutex
	entries []logdomain.AddRequest
}

func (r *recordedLogs) Add(_ context.Context, req logdomain.AddRequest) (*logdomain.ResponseLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, req)
	return &logdomain.ResponseLog{ID: snowflake.ID(len(r.entries)), RequestType: req.RequestType}, nil
}

func (r *recordedLogs) Get(context.Context, snowflake.ID) (*logdomain.ResponseLog, error) {
	return nil, logdomain.ErrNotFound
}

func (r *recordedLogs) Latest(context.Context, string, string, string, int) ([]logdomain.ResponseLog, error) {
	return nil, nil
}

func (r *recordedLogs) LatestSuccessful(context.Context, string, string, string, int) ([]logdomain.ResponseLog, error) {
	return nil, nil
}

func (r *recordedLogs) Payload(l *logdomain.ResponseLog) ([]byte, error) { return l.ResponseData, nil }

func (r *recordedLogs) byType(requestType string) []logdomain.AddRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []logdomain.AddRequest
	for _, e := range r.entries {
		if e.RequestType == requestType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	registry *Registry
	clock    *clock.FakeClock
	logs     *recordedLogs
}

func newFixture(t *testing.T, baseURL string) *fixture {
	t.Helper()

	settings := config.StaticSettings{Providers: []config.ProviderSetting{
		{
			Company: testCompany, CompanyAbbr: "AKH", Provider: config.ProviderJubilee, Enabled: true,
			ServiceURL: baseURL, Username: "api", Password: "secret", ProviderID: "P-1",
		},
		{
			Company: testCompany, CompanyAbbr: "AKH", Provider: config.ProviderNHIF, Enabled: true,
			ServiceURL: baseURL, ClaimsServerURL: baseURL, Username: "api", Password: "secret", FacilityCode: "04335",
		},
	}}

	fx := &fixture{
		clock: clock.NewFakeClock(time.Now()),
		logs:  &recordedLogs{},
	}
	cfg := config.Config{Provider: config.ProviderClientConfig{RequestTimeout: 5 * time.Second, RetryUnit: time.Second}}
	fx.registry = NewRegistry(Params{
		Config:   cfg,
		Settings: settings,
		Store:    cache.NewMemoryStore(),
		Clock:    fx.clock,
		Logs:     fx.logs,
		Log:      zap.NewNop(),
	})
	return fx
}

func (f *fixture) client(t *testing.T, provider providerdomain.Provider) providerdomain.Client {
	t.Helper()
	c, err := f.registry.Get(provider)
	require.NoError(t, err)
	return c
}

func jubileeToken(w http.ResponseWriter, expires time.Time) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"Description": map[string]any{
			"token_type":   "Bearer",
			"access_token": "tok-1",
			"expires_in":   expires.Unix(),
		},
	})
}

func TestNetworkFailureRetriesWithLinearBackoff(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := newFixture(t, url)
	_, err := f.client(t, providerdomain.Jubilee).FetchPriceSnapshot(context.Background(), testCompany)
	require.Error(t, err)

	var netErr *providerdomain.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, 3, netErr.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 4 * time.Second}, f.clock.Sleeps())

	tokenLogs := f.logs.byType(logdomain.RequestToken)
	require.Len(t, tokenLogs, 1)
	assert.Equal(t, 0, tokenLogs[0].StatusCode)
	assert.Empty(t, tokenLogs[0].RequestBody)
}

func TestNonOKResponseIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"Message":"boom"}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	_, err := f.client(t, providerdomain.Jubilee).FetchPriceSnapshot(context.Background(), testCompany)

	var statusErr *providerdomain.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, f.clock.Sleeps())

	logs := f.logs.byType(logdomain.RequestToken)
	require.Len(t, logs, 1)
	assert.Equal(t, http.StatusInternalServerError, logs[0].StatusCode)
}

func TestJubileeTokenIsCachedAcrossCalls(t *testing.T) {
	var tokenHits, priceHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jubileeapi/Token":
			tokenHits.Add(1)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "P-1", r.PostForm.Get("providerid"))
			jubileeToken(w, time.Now().Add(time.Hour))
		case "/jubileeapi/GetPriceList":
			priceHits.Add(1)
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"Description":[{"ItemCode":"C001","ItemName":"Consultation","ItemPrice":25000}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	client := f.client(t, providerdomain.Jubilee)

	for i := 0; i < 2; i++ {
		snapshot, err := client.FetchPriceSnapshot(context.Background(), testCompany)
		require.NoError(t, err)
		require.Len(t, snapshot.PricePackages, 1)
		assert.Equal(t, "C001", snapshot.PricePackages[0].String("ItemCode"))
		assert.Equal(t, float64(25000), snapshot.PricePackages[0].Float("ItemPrice"))
		assert.NotZero(t, snapshot.LogID)
	}
	assert.Equal(t, int32(1), tokenHits.Load())
	assert.Equal(t, int32(2), priceHits.Load())
}

func TestExpiredTokenIsRefetched(t *testing.T) {
	var tokenHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/jubileeapi/Token" {
			tokenHits.Add(1)
			jubileeToken(w, time.Now().Add(10*time.Minute))
			return
		}
		_, _ = w.Write([]byte(`{"Description":[{"ItemCode":"C001"}]}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	client := f.client(t, providerdomain.Jubilee)

	_, err := client.FetchPriceSnapshot(context.Background(), testCompany)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = client.FetchPriceSnapshot(context.Background(), testCompany)
	require.NoError(t, err)

	assert.Equal(t, int32(2), tokenHits.Load())
}

func TestNHIFSnapshotCarriesExcludedServices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/claimsserver/Token":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "password", r.PostForm.Get("grant_type"))
			_, _ = w.Write([]byte(`{"access_token":"nhif-tok","token_type":"bearer","expires_in":3600}`))
		case "/claimsserver/api/v1/Packages/GetPricePackageWithExcludedServices":
			assert.Equal(t, "04335", r.URL.Query().Get("FacilityCode"))
			_, _ = w.Write([]byte(`{
				"PricePackage":[{"ItemCode":"1001","SchemeID":"1001","UnitPrice":"15000.00","IsActive":true}],
				"ExcludedServices":[{"ItemCode":"1001","SchemeID":"1001","SchemeName":"NHIF","ExcludedForProducts":"TOTO"}]
			}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	snapshot, err := f.client(t, providerdomain.NHIF).FetchPriceSnapshot(context.Background(), testCompany)
	require.NoError(t, err)

	assert.Equal(t, logdomain.RequestGetPricePackageWithExclusion, snapshot.RequestType)
	assert.Equal(t, "04335", snapshot.FacilityCode)
	require.Len(t, snapshot.PricePackages, 1)
	require.Len(t, snapshot.ExcludedServices, 1)
	assert.Equal(t, float64(15000), snapshot.PricePackages[0].Float("UnitPrice"))
	assert.Equal(t, "TOTO", snapshot.ExcludedServices[0].String("ExcludedForProducts"))
}

func TestSubmitFolioRejectedAndStripsFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/claimsserver/Token":
			_, _ = w.Write([]byte(`{"access_token":"nhif-tok","token_type":"bearer","expires_in":3600}`))
		case "/claimsserver/api/v1/Claims/SubmitFolios":
			var folio providerdomain.Folio
			require.NoError(t, json.NewDecoder(r.Body).Decode(&folio))
			require.Len(t, folio.Entities, 1)
			assert.Equal(t, "cGRm", folio.Entities[0].PatientFile)
			assert.Equal(t, "04335", folio.Entities[0].FacilityCode)
			_, _ = w.Write([]byte(`{"status":"ERROR","description":"Folio already submitted"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	folio := providerdomain.Folio{Entities: []providerdomain.FolioEntity{{FolioNo: 7, PatientFile: "cGRm", ClaimFile: "cGRm"}}}
	result, err := f.client(t, providerdomain.NHIF).SubmitFolio(context.Background(), testCompany, folio,
		providerdomain.Reference{Doctype: "Claim", Docname: "42"})

	var rejected *providerdomain.RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "Folio already submitted", rejected.Description)
	require.NotNil(t, result)
	assert.Empty(t, folio.Entities[0].FacilityCode)

	logs := f.logs.byType(logdomain.RequestSubmitClaim)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].RequestBody, "Stripped off")
	assert.NotContains(t, logs[0].RequestBody, "cGRm")
	assert.Equal(t, "42", logs[0].RefDocname)
}

func TestCardLookupOnlyForJubilee(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jubileeapi/Token":
			jubileeToken(w, time.Now().Add(time.Hour))
		case "/jubileeapi/Getcarddetails":
			assert.Equal(t, "JUB-9", r.URL.Query().Get("MemberNo"))
			_, _ = fmt.Fprint(w, `{"MemberNo":"JUB-9","FullName":"Asha Said","Status":"ACTIVE"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)

	_, err := f.registry.CardVerifier(providerdomain.NHIF)
	assert.ErrorIs(t, err, providerdomain.ErrCardLookupUnsupported)

	verifier, err := f.registry.CardVerifier(providerdomain.Jubilee)
	require.NoError(t, err)
	card, err := verifier.GetCardDetails(context.Background(), testCompany, "JUB-9")
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", card.Status)
	assert.Equal(t, "JUB-9", card.CardNo)
	assert.Equal(t, "Asha Said", card.Raw["FullName"])

	_, err = verifier.GetCardDetails(context.Background(), testCompany, "  ")
	assert.ErrorIs(t, err, providerdomain.ErrInvalidCardNo)
}

func TestUnknownCompanyIsNotConfigured(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1")
	_, err := f.client(t, providerdomain.NHIF).FetchPriceSnapshot(context.Background(), "Other Hospital")
	assert.ErrorIs(t, err, providerdomain.ErrProviderNotSet)
}

func TestBackoffUnits(t *testing.T) {
	p := DefaultRetryPolicy(time.Millisecond)
	assert.Equal(t, time.Millisecond, p.Backoff(0))
	assert.Equal(t, 4*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 7*time.Millisecond, p.Backoff(2))
}
