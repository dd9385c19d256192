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

// NHIF talks to the NHIF claims server. Price packages are fetched per
// facility together with the excluded services list.
type NHIF struct {
	*transport
	tokens   *TokenSource
	settings config.SettingsSource
}

var _ providerdomain.Client = (*NHIF)(nil)

func (c *NHIF) Provider() providerdomain.Provider { return providerdomain.NHIF }

type nhifTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *NHIF) setting(company string) (config.ProviderSetting, error) {
	setting, err := c.settings.Get().Find(company, config.ProviderNHIF)
	if err != nil {
		return config.ProviderSetting{}, fmt.Errorf("%w: %v", providerdomain.ErrProviderNotSet, err)
	}
	return setting, nil
}

func (c *NHIF) token(ctx context.Context, setting config.ProviderSetting) (string, error) {
	return c.tokens.Token(ctx, providerdomain.NHIF, setting.Company, TokenClaims, func(ctx context.Context) (string, time.Time, error) {
		form := url.Values{}
		form.Set("grant_type", "password")
		form.Set("username", setting.Username)
		form.Set("password", setting.Password)

		resp, err := c.do(ctx, request{
			provider:    providerdomain.NHIF,
			company:     setting.Company,
			requestType: logdomain.RequestToken,
			method:      http.MethodPost,
			url:         joinURL(setting.ClaimsURL(), "/claimsserver/Token"),
			header:      map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
			body:        []byte(form.Encode()),
		})
		if err != nil {
			return "", time.Time{}, err
		}

		var payload nhifTokenResponse
		if err := json.Unmarshal(resp.body, &payload); err != nil {
			return "", time.Time{}, fmt.Errorf("%w: %v", providerdomain.ErrInvalidToken, err)
		}
		if !strings.EqualFold(payload.TokenType, "bearer") {
			return "", time.Time{}, providerdomain.ErrInvalidToken
		}
		// expires_in is relative, in seconds.
		return payload.AccessToken, c.clock.Now().Add(time.Duration(payload.ExpiresIn) * time.Second), nil
	})
}

func (c *NHIF) FetchPriceSnapshot(ctx context.Context, company string) (*providerdomain.PriceSnapshot, error) {
	setting, err := c.setting(company)
	if err != nil {
		return nil, err
	}
	token, err := c.token(ctx, setting)
	if err != nil {
		return nil, err
	}

	endpoint := joinURL(setting.ClaimsURL(),
		"/claimsserver/api/v1/Packages/GetPricePackageWithExcludedServices?FacilityCode="+url.QueryEscape(setting.FacilityCode))
	resp, err := c.do(ctx, request{
		provider:    providerdomain.NHIF,
		company:     company,
		requestType: logdomain.RequestGetPricePackageWithExclusion,
		method:      http.MethodGet,
		url:         endpoint,
		header:      bearer(token),
	})
	if err != nil {
		return nil, err
	}
	if isEmptyBody(resp.body) {
		return nil, providerdomain.ErrEmptyResponse
	}

	packages, excluded, err := providerdomain.DecodePricePayload(providerdomain.NHIF, resp.body)
	if err != nil {
		return nil, err
	}

	return &providerdomain.PriceSnapshot{
		Provider:         providerdomain.NHIF,
		Company:          company,
		FacilityCode:     setting.FacilityCode,
		RequestType:      logdomain.RequestGetPricePackageWithExclusion,
		LogID:            resp.logID,
		PricePackages:    packages,
		ExcludedServices: excluded,
	}, nil
}

func (c *NHIF) SubmitFolio(ctx context.Context, company string, folio providerdomain.Folio, ref providerdomain.Reference) (*providerdomain.SubmitResult, error) {
	setting, err := c.setting(company)
	if err != nil {
		return nil, err
	}
	token, err := c.token(ctx, setting)
	if err != nil {
		return nil, err
	}
	folio.Entities = append([]providerdomain.FolioEntity(nil), folio.Entities...)
	for i := range folio.Entities {
		if folio.Entities[i].FacilityCode == "" {
			folio.Entities[i].FacilityCode = setting.FacilityCode
		}
	}
	return submitFolio(ctx, c.transport, providerdomain.NHIF, company,
		joinURL(setting.ClaimsURL(), "/claimsserver/api/v1/Claims/SubmitFolios"), token, folio, ref)
}
