// Package vault resolves per-device credentials for the poll ingestor.
// Lookup order: target config overrides, then the addon's default
// credentials, then system-wide settings. The full credential store
// (encryption, rotation) lives outside this service; this is its seam.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/store"
)

// Credential types.
const (
	TypeSNMP = "snmp"
	TypeHTTP = "http"
	TypeSSH  = "ssh"
)

// Credentials is what a poller needs to reach one device.
type Credentials struct {
	Username  string
	Password  string
	Token     string
	Community string
	Port      int
}

// SettingsStore is the system_settings lookup the vault falls back to.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (*models.SystemSetting, error)
}

// Vault resolves credentials for (device, credential type) pairs.
type Vault struct {
	settings SettingsStore
}

// New builds a vault over the settings store.
func New(settings SettingsStore) *Vault {
	return &Vault{settings: settings}
}

// Resolve assembles credentials for polling one target. Missing values stay
// zero; pollers apply their own protocol defaults.
func (v *Vault) Resolve(ctx context.Context, target *models.Target, addon *models.Addon, credType string) Credentials {
	creds := Credentials{
		Username:  v.lookup(ctx, target, addon, credType, "username"),
		Password:  v.lookup(ctx, target, addon, credType, "password"),
		Token:     v.lookup(ctx, target, addon, credType, "token"),
		Community: v.lookup(ctx, target, addon, credType, "community"),
	}
	if port := v.lookup(ctx, target, addon, credType, "port"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			creds.Port = n
		}
	}
	return creds
}

func (v *Vault) lookup(ctx context.Context, target *models.Target, addon *models.Addon, credType, key string) string {
	if target != nil {
		if value := target.ConfigString(key); value != "" {
			return value
		}
	}
	if addon != nil && addon.Manifest != nil && addon.Manifest.APIPoll != nil {
		if value := addon.Manifest.APIPoll.DefaultCredentials[key]; value != "" {
			return value
		}
	}
	if v.settings != nil {
		setting, err := v.settings.GetSetting(ctx, fmt.Sprintf("default_%s_%s", credType, key))
		if err == nil {
			return setting.Value
		}
		if !errors.Is(err, store.ErrNotFound) {
			return ""
		}
	}
	return ""
}
