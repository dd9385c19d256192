package httpclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/hmsinsure/internal/cache"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
)

type TokenKind string

const (
	TokenService TokenKind = "service"
	TokenClaims  TokenKind = "claims"
)

// expirySkew renews tokens slightly before the provider expires them.
const expirySkew = 30 * time.Second

type fetchTokenFunc func(ctx context.Context) (token string, expiresAt time.Time, err error)

// TokenSource caches bearer tokens per provider, company and kind.
type TokenSource struct {
	store cache.Store
	clock clock.Clock
}

func NewTokenSource(store cache.Store, clk clock.Clock) *TokenSource {
	return &TokenSource{store: store, clock: clk}
}

func (s *TokenSource) Token(ctx context.Context, provider providerdomain.Provider, company string, kind TokenKind, fetch fetchTokenFunc) (string, error) {
	key := tokenKey(provider, company, kind)

	if raw, ok, err := s.store.Get(ctx, key); err == nil && ok {
		if token, expiresAt, ok := decodeToken(raw); ok && s.clock.Now().Before(expiresAt) {
			return token, nil
		}
	}

	token, expiresAt, err := fetch(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(token) == "" {
		return "", providerdomain.ErrInvalidToken
	}

	expiresAt = expiresAt.Add(-expirySkew)
	if ttl := expiresAt.Sub(s.clock.Now()); ttl > 0 {
		if err := s.store.Set(ctx, key, encodeToken(token, expiresAt), ttl); err != nil {
			return "", fmt.Errorf("cache %s token: %w", provider, err)
		}
	}
	return token, nil
}

// Invalidate drops a cached token, used after the provider answers 401.
func (s *TokenSource) Invalidate(ctx context.Context, provider providerdomain.Provider, company string, kind TokenKind) error {
	return s.store.Delete(ctx, tokenKey(provider, company, kind))
}

func tokenKey(provider providerdomain.Provider, company string, kind TokenKind) string {
	return fmt.Sprintf("hmsinsure:token:%s:%s:%s", strings.ToLower(provider.String()), company, kind)
}

func encodeToken(token string, expiresAt time.Time) string {
	return strconv.FormatInt(expiresAt.Unix(), 10) + "|" + token
}

func decodeToken(raw string) (string, time.Time, bool) {
	exp, token, ok := strings.Cut(raw, "|")
	if !ok {
		return "", time.Time{}, false
	}
	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return token, time.Unix(unix, 0).UTC(), true
}
