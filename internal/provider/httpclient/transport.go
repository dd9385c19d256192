package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/internal/observability/logger"
	"github.com/smallbiznis/hmsinsure/internal/observability/metrics"
	"github.com/smallbiznis/hmsinsure/internal/observability/tracing"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	logdomain "github.com/smallbiznis/hmsinsure/internal/responselog/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxLoggedBody caps the error body copied into StatusError messages.
const maxLoggedBody = 2048

type request struct {
	provider    providerdomain.Provider
	company     string
	requestType string
	method      string
	url         string
	header      map[string]string
	body        []byte
	// logBody replaces body in the response log when set.
	logBody string
	ref     providerdomain.Reference
}

type response struct {
	statusCode int
	body       []byte
	logID      snowflake.ID
}

// transport performs provider calls: retries network failures, records every
// exchange in the response log and rejects non-200 answers.
type transport struct {
	http    *http.Client
	clock   clock.Clock
	retry   RetryPolicy
	logs    logdomain.Service
	metrics *metrics.Metrics
	log     *zap.Logger
	tracer  trace.Tracer
}

func newTransport(httpClient *http.Client, clk clock.Clock, retry RetryPolicy, logs logdomain.Service, m *metrics.Metrics, log *zap.Logger) *transport {
	return &transport{
		http:    httpClient,
		clock:   clk,
		retry:   retry,
		logs:    logs,
		metrics: m,
		log:     log,
		tracer:  otel.Tracer("hmsinsure/provider"),
	}
}

func (t *transport) do(ctx context.Context, req request) (*response, error) {
	ctx, span := t.tracer.Start(ctx, tracing.ProviderSpanName(req.provider.String(), req.requestType), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		tracing.AttrProvider.String(req.provider.String()),
		tracing.AttrCompany.String(req.company),
		attribute.String("insurance.request_type", req.requestType),
		attribute.String("http.method", req.method),
	)...)

	log := logger.WithProvider(logger.WithContext(ctx, t.log), req.provider.String(), req.company).
		With(zap.String("request_type", req.requestType))

	attempts := t.retry.attempts()
	var (
		httpResp *http.Response
		lastErr  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		httpReq, err := t.newHTTPRequest(ctx, req)
		if err != nil {
			return nil, err
		}
		httpResp, lastErr = t.http.Do(httpReq)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}

		log.Warn("provider request failed", zap.Int("attempt", attempt+1), zap.Error(tracing.SafeError(lastErr)))
		t.metrics.RecordProviderRetry(ctx, req.provider.String(), req.requestType)
		if attempt < attempts-1 {
			if err := t.clock.Sleep(ctx, t.retry.Backoff(attempt)); err != nil {
				lastErr = err
				break
			}
		}
	}

	if lastErr != nil {
		netErr := &providerdomain.NetworkError{
			Provider:    req.provider,
			RequestType: req.requestType,
			Attempts:    attempts,
			Err:         lastErr,
		}
		t.record(ctx, req, 0, nil)
		t.metrics.RecordProviderRequest(ctx, req.provider.String(), req.requestType, 0)
		span.RecordError(tracing.SafeError(netErr))
		span.SetStatus(codes.Error, "network error")
		return nil, netErr
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.requestType, err)
	}

	logID := t.record(ctx, req, httpResp.StatusCode, body)
	t.metrics.RecordProviderRequest(ctx, req.provider.String(), req.requestType, httpResp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))

	if httpResp.StatusCode != http.StatusOK {
		statusErr := &providerdomain.StatusError{
			Provider:    req.provider,
			RequestType: req.requestType,
			StatusCode:  httpResp.StatusCode,
			Body:        truncate(string(body), maxLoggedBody),
		}
		log.Error("provider returned non-200",
			zap.Int("status_code", httpResp.StatusCode),
			zap.String("body", statusErr.Body),
		)
		span.SetStatus(codes.Error, "non-200 response")
		return nil, statusErr
	}

	return &response{statusCode: httpResp.StatusCode, body: body, logID: logID}, nil
}

func (t *transport) newHTTPRequest(ctx context.Context, req request) (*http.Request, error) {
	var body io.Reader
	if len(req.body) > 0 {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.requestType, err)
	}
	for k, v := range req.header {
		httpReq.Header.Set(k, v)
	}
	tracing.InjectContext(ctx, propagation.HeaderCarrier(httpReq.Header))
	return httpReq, nil
}

// record writes the exchange to the response log. A failure to log never
// fails the provider call itself.
func (t *transport) record(ctx context.Context, req request, status int, body []byte) snowflake.ID {
	if t.logs == nil {
		return 0
	}
	requestBody := req.logBody
	if requestBody == "" && req.requestType != logdomain.RequestToken {
		requestBody = string(req.body)
	}
	entry, err := t.logs.Add(ctx, logdomain.AddRequest{
		Provider:      req.provider.String(),
		Company:       req.company,
		RequestType:   req.requestType,
		RequestURL:    req.url,
		RequestHeader: req.header,
		RequestBody:   requestBody,
		ResponseData:  body,
		StatusCode:    status,
		RefDoctype:    req.ref.Doctype,
		RefDocname:    req.ref.Docname,
	})
	if err != nil {
		t.log.Error("failed to write provider response log", zap.String("request_type", req.requestType), zap.Error(err))
		return 0
	}
	return entry.ID
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func isEmptyBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("[]"))
}
