package tracing

import (
	"context"
	"errors"
	"regexp"
	"strings"

	obscontext "github.com/smallbiznis/hmsinsure/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"
)

const (
	AttrProvider  attribute.Key = "insurance.provider"
	AttrCompany   attribute.Key = "insurance.company"
	AttrPlan      attribute.Key = "insurance.plan"
	AttrPriceList attribute.Key = "insurance.price_list"
	AttrActorRole attribute.Key = "insurance.actor_role"
	AttrJobID     attribute.Key = "job.id"
)

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"card_no":       {},
	"patient":       {},
	"authorization": {},
	"password":      {},
}

// route parameter -> span attribute; card_no stays out.
var paramAttributes = map[string]attribute.Key{
	"provider":   AttrProvider,
	"company":    AttrCompany,
	"plan":       AttrPlan,
	"price_list": AttrPriceList,
}

// ExtractContext reads trace headers from an inbound carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// InjectContext writes trace headers for an outbound provider call.
func InjectContext(ctx context.Context, carrier propagation.TextMapCarrier) {
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}

// SpanName is "<METHOD> <route>", e.g. "POST /api/v1/providers/:provider/sync".
func SpanName(method, route string) string {
	return strings.ToUpper(method) + " " + route
}

// ProviderSpanName names client spans for outbound insurer calls.
func ProviderSpanName(provider, operation string) string {
	return "provider " + strings.ToLower(provider) + " " + operation
}

// InsuranceAttributes collects provider, company, plan and actor attributes
// from route params and the request context. The company resolved from the
// API key wins over a company path param.
func InsuranceAttributes(ctx context.Context, params map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(paramAttributes)+2)
	company := obscontext.CompanyFromContext(ctx)
	for param, key := range paramAttributes {
		value := strings.TrimSpace(params[param])
		if value == "" || (key == AttrCompany && company != "") {
			continue
		}
		attrs = append(attrs, key.String(value))
	}
	if company != "" {
		attrs = append(attrs, AttrCompany.String(company))
	}
	if role, _ := obscontext.ActorFromContext(ctx); role != "" {
		attrs = append(attrs, AttrActorRole.String(role))
	}
	if jobID := obscontext.JobIDFromContext(ctx); jobID != "" {
		attrs = append(attrs, AttrJobID.String(jobID))
	}
	return SafeAttributes(attrs...)
}

// SafeAttributes drops attributes that could carry patient identifiers.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

var bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`)

// SafeError strips bearer tokens from errors before they are recorded on spans.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(bearerPattern.ReplaceAllString(err.Error(), "Bearer [redacted]"))
}

func withBaggage(ctx context.Context, key, value string) context.Context {
	member, err := baggage.NewMember(key, value)
	if err != nil {
		return ctx
	}
	bag, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
