package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/hmsinsure/internal/config"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	logdomain "github.com/smallbiznis/hmsinsure/internal/responselog/domain"
)

const submitStatusError = "ERROR"

// Jubilee talks to the Jubilee provider API. Tokens are issued separately by
// the service host and the claims host.
type Jubilee struct {
	*transport
	tokens   *TokenSource
	settings config.SettingsSource
}

var (
	_ providerdomain.Client       = (*Jubilee)(nil)
	_ providerdomain.CardVerifier = (*Jubilee)(nil)
)

func (c *Jubilee) Provider() providerdomain.Provider { return providerdomain.Jubilee }

type jubileeTokenResponse struct {
	Description struct {
		TokenType   string `json:"token_type"`
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	} `json:"Description"`
}

func (c *Jubilee) token(ctx context.Context, setting config.ProviderSetting, kind TokenKind) (string, error) {
	host := setting.ServiceURL
	if kind == TokenClaims {
		host = setting.ClaimsURL()
	}
	return c.tokens.Token(ctx, providerdomain.Jubilee, setting.Company, kind, func(ctx context.Context) (string, time.Time, error) {
		form := url.Values{}
		form.Set("username", setting.Username)
		form.Set("password", setting.Password)
		form.Set("providerid", setting.ProviderID)

		resp, err := c.do(ctx, request{
			provider:    providerdomain.Jubilee,
			company:     setting.Company,
			requestType: logdomain.RequestToken,
			method:      http.MethodPost,
			url:         joinURL(host, "/jubileeapi/Token"),
			header:      map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
			body:        []byte(form.Encode()),
		})
		if err != nil {
			return "", time.Time{}, err
		}

		var payload jubileeTokenResponse
		if err := json.Unmarshal(resp.body, &payload); err != nil {
			return "", time.Time{}, fmt.Errorf("%w: %v", providerdomain.ErrInvalidToken, err)
		}
		if !strings.EqualFold(payload.Description.TokenType, "Bearer") {
			return "", time.Time{}, providerdomain.ErrInvalidToken
		}
		// expires_in is an absolute epoch timestamp for this provider.
		return payload.Description.AccessToken, time.Unix(payload.Description.ExpiresIn, 0).UTC(), nil
	})
}

func (c *Jubilee) setting(company string) (config.ProviderSetting, error) {
	setting, err := c.settings.Get().Find(company, config.ProviderJubilee)
	if err != nil {
		return config.ProviderSetting{}, fmt.Errorf("%w: %v", providerdomain.ErrProviderNotSet, err)
	}
	return setting, nil
}

func (c *Jubilee) FetchPriceSnapshot(ctx context.Context, company string) (*providerdomain.PriceSnapshot, error) {
	setting, err := c.setting(company)
	if err != nil {
		return nil, err
	}
	token, err := c.token(ctx, setting, TokenService)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, request{
		provider:    providerdomain.Jubilee,
		company:     company,
		requestType: logdomain.RequestGetPricePackage,
		method:      http.MethodGet,
		url:         joinURL(setting.ServiceURL, "/jubileeapi/GetPriceList"),
		header:      bearer(token),
	})
	if err != nil {
		return nil, err
	}
	if isEmptyBody(resp.body) {
		return nil, providerdomain.ErrEmptyResponse
	}

	packages, _, err := providerdomain.DecodePricePayload(providerdomain.Jubilee, resp.body)
	if err != nil {
		return nil, err
	}
	if len(packages) == 0 {
		return nil, providerdomain.ErrEmptyResponse
	}

	return &providerdomain.PriceSnapshot{
		Provider:      providerdomain.Jubilee,
		Company:       company,
		RequestType:   logdomain.RequestGetPricePackage,
		LogID:         resp.logID,
		PricePackages: packages,
	}, nil
}

func (c *Jubilee) GetCardDetails(ctx context.Context, company, cardNo string) (*providerdomain.CardDetails, error) {
	cardNo = strings.TrimSpace(cardNo)
	if cardNo == "" {
		return nil, providerdomain.ErrInvalidCardNo
	}
	setting, err := c.setting(company)
	if err != nil {
		return nil, err
	}
	token, err := c.token(ctx, setting, TokenService)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, request{
		provider:    providerdomain.Jubilee,
		company:     company,
		requestType: logdomain.RequestGetCardDetails,
		method:      http.MethodGet,
		url:         joinURL(setting.ServiceURL, "/jubileeapi/Getcarddetails?MemberNo="+url.QueryEscape(cardNo)),
		header:      bearer(token),
		ref:         providerdomain.Reference{Doctype: "Patient"},
	})
	if err != nil {
		return nil, err
	}
	if isEmptyBody(resp.body) {
		return nil, providerdomain.ErrEmptyResponse
	}

	var card providerdomain.CardDetails
	if err := json.Unmarshal(resp.body, &card); err != nil {
		return nil, fmt.Errorf("decode jubilee card details: %w", err)
	}
	if err := json.Unmarshal(resp.body, &card.Raw); err != nil {
		return nil, fmt.Errorf("decode jubilee card details: %w", err)
	}
	if card.CardNo == "" {
		card.CardNo = cardNo
	}
	return &card, nil
}

func (c *Jubilee) SubmitFolio(ctx context.Context, company string, folio providerdomain.Folio, ref providerdomain.Reference) (*providerdomain.SubmitResult, error) {
	setting, err := c.setting(company)
	if err != nil {
		return nil, err
	}
	token, err := c.token(ctx, setting, TokenClaims)
	if err != nil {
		return nil, err
	}
	return submitFolio(ctx, c.transport, providerdomain.Jubilee, company,
		joinURL(setting.ClaimsURL(), "/jubileeapi/SendClaim"), token, folio, ref)
}

// submitFolio posts the folio and maps a body status of ERROR to a RejectedError.
func submitFolio(ctx context.Context, t *transport, provider providerdomain.Provider, company, endpoint, token string, folio providerdomain.Folio, ref providerdomain.Reference) (*providerdomain.SubmitResult, error) {
	body, err := json.Marshal(folio)
	if err != nil {
		return nil, fmt.Errorf("encode folio: %w", err)
	}
	logged, err := json.Marshal(folio.WithoutFiles())
	if err != nil {
		return nil, fmt.Errorf("encode folio: %w", err)
	}

	header := bearer(token)
	header["Content-Type"] = "application/json"
	resp, err := t.do(ctx, request{
		provider:    provider,
		company:     company,
		requestType: logdomain.RequestSubmitClaim,
		method:      http.MethodPost,
		url:         endpoint,
		header:      header,
		body:        body,
		logBody:     string(logged),
		ref:         ref,
	})
	if err != nil {
		return nil, err
	}

	result := &providerdomain.SubmitResult{LogID: resp.logID}
	if !isEmptyBody(resp.body) {
		if err := json.Unmarshal(resp.body, result); err != nil {
			// Some hosts acknowledge with plain text.
			result.Description = strings.TrimSpace(string(resp.body))
		}
	}
	if strings.EqualFold(result.Status, submitStatusError) {
		return result, &providerdomain.RejectedError{
			Provider:    provider,
			RequestType: logdomain.RequestSubmitClaim,
			Description: result.Description,
		}
	}
	return result, nil
}
