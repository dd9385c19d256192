package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/hmsinsure/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddlewareNamesSpanByRouteAndTagsInsurance(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.Use(func(c *gin.Context) {
		ctx := obscontext.WithCompany(c.Request.Context(), "Mwananyamala")
		ctx = obscontext.WithActor(ctx, "company", "key_01HX")
		c.Request = c.Request.WithContext(ctx)
	})
	r.GET("/providers/:provider/cards/:card_no", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/providers/nhif/cards/12345678", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /providers/:provider/cards/:card_no", spans[0].Name())

	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "nhif", attrs[AttrProvider])
	assert.Equal(t, "Mwananyamala", attrs[AttrCompany])
	assert.Equal(t, "company", attrs[AttrActorRole])
	assert.NotContains(t, attrs, attribute.Key("card_no"))
	for _, v := range attrs {
		assert.NotEqual(t, "12345678", v)
	}
}

func TestInsuranceAttributesPreferResolvedCompany(t *testing.T) {
	ctx := obscontext.WithCompany(context.Background(), "Aga Khan Hospital")
	attrs := InsuranceAttributes(ctx, map[string]string{"company": "Other", "plan": "NHIF-TOTO"})

	assert.Contains(t, attrs, AttrCompany.String("Aga Khan Hospital"))
	assert.Contains(t, attrs, AttrPlan.String("NHIF-TOTO"))
	assert.NotContains(t, attrs, AttrCompany.String("Other"))
}

func TestProviderSpanName(t *testing.T) {
	assert.Equal(t, "provider nhif verify_card", ProviderSpanName("NHIF", "verify_card"))
}
