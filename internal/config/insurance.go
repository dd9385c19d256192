package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	ProviderJubilee = "Jubilee"
	ProviderNHIF    = "NHIF"
)

var ErrSettingNotFound = errors.New("insurance_setting_not_found")

// ProviderSetting is the per company and provider integration setting.
type ProviderSetting struct {
	Company          string `mapstructure:"company" validate:"required"`
	CompanyAbbr      string `mapstructure:"companyAbbr" validate:"required"`
	Currency         string `mapstructure:"currency"`
	Provider         string `mapstructure:"provider" validate:"required,oneof=Jubilee NHIF"`
	Enabled          bool   `mapstructure:"enabled"`
	AutoSync         bool   `mapstructure:"autoSync"`
	ServiceURL       string `mapstructure:"serviceUrl" validate:"required,url"`
	ClaimsServerURL  string `mapstructure:"claimsServerUrl" validate:"omitempty,url"`
	Username         string `mapstructure:"username" validate:"required"`
	Password         string `mapstructure:"password" validate:"required"`
	ProviderID       string `mapstructure:"providerId"`
	FacilityCode     string `mapstructure:"facilityCode"`
	SubmitClaimMonth int    `mapstructure:"submitClaimMonth" validate:"omitempty,min=1,max=12"`
	SubmitClaimYear  int    `mapstructure:"submitClaimYear" validate:"omitempty,min=2000"`
}

// ClaimsURL falls back to the service url for providers with a single host.
func (s ProviderSetting) ClaimsURL() string {
	if strings.TrimSpace(s.ClaimsServerURL) != "" {
		return s.ClaimsServerURL
	}
	return s.ServiceURL
}

type InsuranceSettings struct {
	Providers []ProviderSetting `mapstructure:"providers" validate:"dive"`
}

func (s InsuranceSettings) Find(company, provider string) (ProviderSetting, error) {
	for _, item := range s.Providers {
		if item.Company == company && strings.EqualFold(item.Provider, provider) {
			if !item.Enabled {
				return ProviderSetting{}, fmt.Errorf("%w: %s/%s is disabled", ErrSettingNotFound, company, provider)
			}
			return item, nil
		}
	}
	return ProviderSetting{}, fmt.Errorf("%w: %s/%s", ErrSettingNotFound, company, provider)
}

// AutoSyncTargets lists enabled settings with periodic sync turned on.
func (s InsuranceSettings) AutoSyncTargets() []ProviderSetting {
	out := make([]ProviderSetting, 0, len(s.Providers))
	for _, item := range s.Providers {
		if item.Enabled && item.AutoSync {
			out = append(out, item)
		}
	}
	return out
}

// SettingsSource is implemented by the hot reloading holder and by static settings in tests.
type SettingsSource interface {
	Get() InsuranceSettings
}

type StaticSettings InsuranceSettings

func (s StaticSettings) Get() InsuranceSettings { return InsuranceSettings(s) }

type InsuranceSettingsHolder struct {
	current atomic.Value // holds InsuranceSettings
}

func NewInsuranceSettingsHolder() (*InsuranceSettingsHolder, error) {
	v := viper.New()

	v.SetConfigName("insurance")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/hmsinsure/config")
	v.AddConfigPath("/etc/hmsinsure")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HMSINSURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &InsuranceSettingsHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Printf("[insurance-config] no insurance.yml found, provider integrations disabled")
		holder.current.Store(InsuranceSettings{})
		return holder, nil
	}

	cfg, err := decodeInsuranceSettings(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeInsuranceSettings(v)
		if err != nil {
			log.Printf("[insurance-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[insurance-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *InsuranceSettingsHolder) Get() InsuranceSettings {
	return h.current.Load().(InsuranceSettings)
}

func decodeInsuranceSettings(v *viper.Viper) (InsuranceSettings, error) {
	var cfg InsuranceSettings
	if err := v.UnmarshalKey("insurance", &cfg); err != nil {
		return InsuranceSettings{}, err
	}
	if err := ValidateInsuranceSettings(cfg); err != nil {
		return InsuranceSettings{}, err
	}
	return cfg, nil
}

func ValidateInsuranceSettings(cfg InsuranceSettings) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("insurance settings: %w", err)
	}
	seen := make(map[string]struct{}, len(cfg.Providers))
	for _, item := range cfg.Providers {
		key := item.Company + "/" + strings.ToLower(item.Provider)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("insurance settings: duplicate provider %s for company %s", item.Provider, item.Company)
		}
		seen[key] = struct{}{}
	}
	return nil
}
