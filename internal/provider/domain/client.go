package domain

import "context"

// Client is an insurance provider API.
type Client interface {
	Provider() Provider
	FetchPriceSnapshot(ctx context.Context, company string) (*PriceSnapshot, error)
	SubmitFolio(ctx context.Context, company string, folio Folio, ref Reference) (*SubmitResult, error)
}

// CardVerifier is implemented by providers that expose member card lookups.
type CardVerifier interface {
	GetCardDetails(ctx context.Context, company, cardNo string) (*CardDetails, error)
}

// Reference names the local document a provider call was made for.
type Reference struct {
	Doctype string
	Docname string
}

type Registry interface {
	Get(provider Provider) (Client, error)
}
