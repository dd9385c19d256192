package claimmetrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/hmsinsure/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecorderCountsClaimEvents(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())
	rec := &recorder{metrics: m}

	rec.RecordClaimSubmitted("Aga Khan Hospital", "NHIF", 45000)
	rec.RecordClaimSubmitted("Aga Khan Hospital", "NHIF", 0)
	rec.RecordItemsReconciled("Aga Khan Hospital", 3)
	rec.RecordItemsReconciled("Aga Khan Hospital", 0)
	rec.RecordOutOfStock("", 2)
	rec.RecordProviderSync("Jubilee", "Aga Khan Hospital", OutcomeFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.claimsSubmitted.WithLabelValues("Aga Khan Hospital", "NHIF")))
	assert.Equal(t, 45000.0, testutil.ToFloat64(m.claimAmountSubmitted.WithLabelValues("Aga Khan Hospital", "NHIF")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.itemsReconciled.WithLabelValues("Aga Khan Hospital")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.outOfStockItems.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerSyncs.WithLabelValues("Jubilee", "Aga Khan Hospital", OutcomeFailed)))
}

func TestRemoteWritePusherSendsSnappyProtobuf(t *testing.T) {
	var got prompb.WriteRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		raw, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		require.NoError(t, got.Unmarshal(raw))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	m := newMetrics(registry)
	(&recorder{metrics: m}).RecordNoteSubmitted("Aga Khan Hospital")

	pusher := NewRemoteWritePusher(srv.URL, "secret", "hmsinsure")
	pusher.now = func() time.Time { return time.UnixMilli(1715677200000) }
	require.NoError(t, pusher.Push(context.Background(), registry))

	assert.Equal(t, "snappy", headers.Get("Content-Encoding"))
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))

	var found bool
	for _, ts := range got.Timeseries {
		labels := map[string]string{}
		for _, l := range ts.Labels {
			labels[l.Name] = l.Value
		}
		if labels["__name__"] != "hmsinsure_delivery_notes_submitted_total" {
			continue
		}
		found = true
		assert.Equal(t, "Aga Khan Hospital", labels["company"])
		assert.Equal(t, "hmsinsure", labels["instance"])
		require.Len(t, ts.Samples, 1)
		assert.Equal(t, 1.0, ts.Samples[0].Value)
		assert.Equal(t, int64(1715677200000), ts.Samples[0].Timestamp)
	}
	assert.True(t, found)
}

func TestRemoteWritePusherReportsRejectedWrites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	m := newMetrics(registry)
	(&recorder{metrics: m}).RecordNoteSubmitted("Aga Khan Hospital")

	err := NewRemoteWritePusher(srv.URL, "", "").Push(context.Background(), registry)
	assert.ErrorContains(t, err, "400")
}

func TestNewPusherValidatesConfig(t *testing.T) {
	cfg := config.Config{AppName: "hmsinsure", MetricsPush: config.MetricsPushConfig{Exporter: "statsd", Endpoint: "http://collector"}}
	_, err := NewPusher(cfg)
	assert.ErrorIs(t, err, ErrUnsupportedExporter)

	cfg.MetricsPush = config.MetricsPushConfig{Exporter: ExporterRemoteWrite}
	_, err = NewPusher(cfg)
	assert.Error(t, err)

	cfg.MetricsPush = config.MetricsPushConfig{Exporter: ExporterPushgateway, Endpoint: "http://pushgateway:9091"}
	pusher, err := NewPusher(cfg)
	require.NoError(t, err)
	assert.IsType(t, &PushgatewayPusher{}, pusher)
}

type countingPusher struct{ pushes atomic.Int32 }

func (p *countingPusher) Push(context.Context, prometheus.Gatherer) error {
	p.pushes.Add(1)
	return nil
}

func TestPushLoopFlushesOnStop(t *testing.T) {
	pusher := &countingPusher{}
	m := newMetrics(prometheus.NewRegistry())
	loop := newPushLoop(pusher, prometheus.NewRegistry(), m, time.Hour, zap.NewNop())

	loop.Start()
	require.NoError(t, loop.Stop(context.Background()))

	assert.Equal(t, int32(1), pusher.pushes.Load())
	assert.Greater(t, testutil.ToFloat64(m.lastPush), 0.0)
}
