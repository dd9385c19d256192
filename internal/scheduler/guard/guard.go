package guard

import (
	"errors"
	"strings"

	"github.com/smallbiznis/hmsinsure/internal/config"
)

var (
	ErrSyncDisabled      = errors.New("provider_sync_disabled")
	ErrMissingServiceURL = errors.New("provider_service_url_missing")
	ErrMissingCredential = errors.New("provider_credentials_missing")
)

// EnsureCanSync rejects settings that would only produce a failing sync job.
func EnsureCanSync(setting config.ProviderSetting) error {
	if !setting.Enabled || !setting.AutoSync {
		return ErrSyncDisabled
	}
	if strings.TrimSpace(setting.ServiceURL) == "" {
		return ErrMissingServiceURL
	}
	if strings.TrimSpace(setting.Username) == "" || strings.TrimSpace(setting.Password) == "" {
		return ErrMissingCredential
	}
	return nil
}
