package httpclient

import (
	"net/http"

	"github.com/smallbiznis/hmsinsure/internal/cache"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/internal/config"
	"github.com/smallbiznis/hmsinsure/internal/observability/metrics"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	logdomain "github.com/smallbiznis/hmsinsure/internal/responselog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config   config.Config
	Settings config.SettingsSource
	Store    cache.Store
	Clock    clock.Clock
	Logs     logdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
	Log      *zap.Logger
	// HTTPClient overrides the default client.
	HTTPClient *http.Client `optional:"true"`
}

// Registry resolves the client for a provider name.
type Registry struct {
	clients map[providerdomain.Provider]providerdomain.Client
}

var _ providerdomain.Registry = (*Registry)(nil)

func NewRegistry(p Params) *Registry {
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: p.Config.Provider.RequestTimeout}
	}

	t := newTransport(httpClient, p.Clock, DefaultRetryPolicy(p.Config.Provider.RetryUnit), p.Logs, p.Metrics, p.Log.Named("provider.client"))
	tokens := NewTokenSource(p.Store, p.Clock)

	return &Registry{clients: map[providerdomain.Provider]providerdomain.Client{
		providerdomain.Jubilee: &Jubilee{transport: t, tokens: tokens, settings: p.Settings},
		providerdomain.NHIF:    &NHIF{transport: t, tokens: tokens, settings: p.Settings},
	}}
}

func (r *Registry) Get(provider providerdomain.Provider) (providerdomain.Client, error) {
	client, ok := r.clients[provider]
	if !ok {
		return nil, providerdomain.ErrUnknownProvider
	}
	return client, nil
}

// CardVerifier returns the card lookup of the provider, if it has one.
func (r *Registry) CardVerifier(provider providerdomain.Provider) (providerdomain.CardVerifier, error) {
	client, err := r.Get(provider)
	if err != nil {
		return nil, err
	}
	verifier, ok := client.(providerdomain.CardVerifier)
	if !ok {
		return nil, providerdomain.ErrCardLookupUnsupported
	}
	return verifier, nil
}
