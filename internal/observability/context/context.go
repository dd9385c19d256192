package context

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	companyKey   ctxKey = "company"
	actorRoleKey ctxKey = "actor_role"
	actorIDKey   ctxKey = "actor_id"
	jobIDKey     ctxKey = "job_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

func WithCompany(ctx context.Context, company string) context.Context {
	return context.WithValue(ctx, companyKey, strings.TrimSpace(company))
}

func CompanyFromContext(ctx context.Context) string {
	return stringValue(ctx, companyKey)
}

// WithActor stores the authenticated caller. Role drives authorization, id is for audit fields.
func WithActor(ctx context.Context, role, id string) context.Context {
	ctx = context.WithValue(ctx, actorRoleKey, strings.TrimSpace(role))
	return context.WithValue(ctx, actorIDKey, strings.TrimSpace(id))
}

func ActorFromContext(ctx context.Context) (string, string) {
	return stringValue(ctx, actorRoleKey), stringValue(ctx, actorIDKey)
}

func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, strings.TrimSpace(jobID))
}

func JobIDFromContext(ctx context.Context) string {
	return stringValue(ctx, jobIDKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
