// Package registry holds the installed addon manifests and serves the
// dispatch lookups used by the ingestors. Readers always see a consistent
// immutable snapshot; writers rebuild and swap the snapshot atomically.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

// ErrInvalidManifest rejects installs of malformed or conflicting manifests.
var ErrInvalidManifest = errors.New("invalid manifest")

// Store is the persistence surface the registry needs.
type Store interface {
	ListAddons(ctx context.Context, enabledOnly bool) ([]*models.Addon, error)
	GetAddon(ctx context.Context, id string) (*models.Addon, error)
	UpsertAddon(ctx context.Context, m *models.Manifest, enabled bool) error
	DeleteAddon(ctx context.Context, id string) error
	SetAddonEnabled(ctx context.Context, id string, enabled bool) error
}

type oidEntry struct {
	prefix string
	addon  *models.Addon
}

// snapshot is one immutable view of the enabled addons.
type snapshot struct {
	byID        map[string]*models.Addon
	byWebhook   map[string]*models.Addon
	oidEntries  []oidEntry // sorted longest prefix first, then by addon id
	listEnabled []*models.Addon
}

// Registry indexes enabled addons for O(1) dispatch.
type Registry struct {
	store Store
	snap  atomic.Pointer[snapshot]
}

// New creates an empty registry; call Reload to populate it.
func New(store Store) *Registry {
	r := &Registry{store: store}
	r.snap.Store(&snapshot{
		byID:      make(map[string]*models.Addon),
		byWebhook: make(map[string]*models.Addon),
	})
	return r
}

// Reload reads all enabled addons and swaps in a fresh index set. On error
// the previous snapshot stays active.
func (r *Registry) Reload(ctx context.Context) error {
	addons, err := r.store.ListAddons(ctx, true)
	if err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}

	snap := &snapshot{
		byID:        make(map[string]*models.Addon, len(addons)),
		byWebhook:   make(map[string]*models.Addon),
		listEnabled: addons,
	}

	for _, a := range addons {
		snap.byID[a.ID] = a
		if a.Manifest == nil {
			continue
		}
		if a.Manifest.Webhook != nil && a.Manifest.Webhook.EndpointPath != "" {
			path := normalizeWebhookPath(a.Manifest.Webhook.EndpointPath)
			if other, ok := snap.byWebhook[path]; ok {
				log.Warn().Str("path", path).Str("addon", a.ID).Str("conflict", other.ID).
					Msg("Duplicate webhook path among enabled addons, keeping first")
				continue
			}
			snap.byWebhook[path] = a
		}
		if a.Manifest.SNMPTrap != nil && a.Manifest.SNMPTrap.EnterpriseOID != "" {
			snap.oidEntries = append(snap.oidEntries, oidEntry{
				prefix: normalizeOID(a.Manifest.SNMPTrap.EnterpriseOID),
				addon:  a,
			})
		}
	}

	// Longest prefix first; equal lengths break ties by addon id so dispatch
	// is deterministic.
	sort.Slice(snap.oidEntries, func(i, j int) bool {
		if len(snap.oidEntries[i].prefix) != len(snap.oidEntries[j].prefix) {
			return len(snap.oidEntries[i].prefix) > len(snap.oidEntries[j].prefix)
		}
		return snap.oidEntries[i].addon.ID < snap.oidEntries[j].addon.ID
	})

	r.snap.Store(snap)
	log.Info().Int("addons", len(addons)).Int("webhookPaths", len(snap.byWebhook)).
		Int("oidPrefixes", len(snap.oidEntries)).Msg("Addon registry reloaded")
	return nil
}

// Get returns the enabled addon with this id, or nil.
func (r *Registry) Get(id string) *models.Addon {
	return r.snap.Load().byID[id]
}

// FindByOID returns the enabled addon whose enterprise_oid is the longest
// prefix of oid, or nil when nothing matches.
func (r *Registry) FindByOID(oid string) *models.Addon {
	oid = normalizeOID(oid)
	if oid == "" {
		return nil
	}
	for _, e := range r.snap.Load().oidEntries {
		if oidHasPrefix(oid, e.prefix) {
			return e.addon
		}
	}
	return nil
}

// FindByWebhook returns the enabled addon registered at this endpoint path
// (exact match only), or nil.
func (r *Registry) FindByWebhook(path string) *models.Addon {
	return r.snap.Load().byWebhook[normalizeWebhookPath(path)]
}

// ListEnabled returns every enabled addon.
func (r *Registry) ListEnabled() []*models.Addon {
	return r.snap.Load().listEnabled
}

// ListByMethod returns enabled addons using the given transport.
func (r *Registry) ListByMethod(m models.Method) []*models.Addon {
	var out []*models.Addon
	for _, a := range r.snap.Load().listEnabled {
		if a.Method == m {
			out = append(out, a)
		}
	}
	return out
}

// Install validates and upserts a manifest, then reloads the indexes.
// Validation failures leave both the store and the snapshot untouched.
func (r *Registry) Install(ctx context.Context, m *models.Manifest) error {
	if err := ValidateManifest(m); err != nil {
		return err
	}
	if err := r.checkWebhookUnique(ctx, m); err != nil {
		return err
	}
	if err := r.store.UpsertAddon(ctx, m, true); err != nil {
		return err
	}
	return r.Reload(ctx)
}

// Uninstall removes an addon and reloads.
func (r *Registry) Uninstall(ctx context.Context, id string) error {
	if err := r.store.DeleteAddon(ctx, id); err != nil {
		return err
	}
	return r.Reload(ctx)
}

// Enable turns an addon on and reloads.
func (r *Registry) Enable(ctx context.Context, id string) error {
	addon, err := r.store.GetAddon(ctx, id)
	if err != nil {
		return err
	}
	if addon.Manifest != nil && addon.Manifest.Webhook != nil {
		if err := r.checkWebhookUnique(ctx, addon.Manifest); err != nil {
			return err
		}
	}
	if err := r.store.SetAddonEnabled(ctx, id, true); err != nil {
		return err
	}
	return r.Reload(ctx)
}

// Disable turns an addon off and reloads.
func (r *Registry) Disable(ctx context.Context, id string) error {
	if err := r.store.SetAddonEnabled(ctx, id, false); err != nil {
		return err
	}
	return r.Reload(ctx)
}

// checkWebhookUnique enforces endpoint_path uniqueness across enabled addons.
func (r *Registry) checkWebhookUnique(ctx context.Context, m *models.Manifest) error {
	if m.Webhook == nil || m.Webhook.EndpointPath == "" {
		return nil
	}
	path := normalizeWebhookPath(m.Webhook.EndpointPath)
	enabled, err := r.store.ListAddons(ctx, true)
	if err != nil {
		return err
	}
	for _, a := range enabled {
		if a.ID == m.ID || a.Manifest == nil || a.Manifest.Webhook == nil {
			continue
		}
		if normalizeWebhookPath(a.Manifest.Webhook.EndpointPath) == path {
			return fmt.Errorf("%w: webhook path %q already used by addon %s",
				ErrInvalidManifest, path, a.ID)
		}
	}
	return nil
}

// normalizeOID strips a leading dot so stored prefixes and incoming trap
// OIDs compare equal regardless of notation.
func normalizeOID(oid string) string {
	return strings.TrimPrefix(strings.TrimSpace(oid), ".")
}

// oidHasPrefix matches on component boundaries: "1.3.6.1.4.1.9" is a prefix
// of "1.3.6.1.4.1.9.9.41" but not of "1.3.6.1.4.1.99".
func oidHasPrefix(oid, prefix string) bool {
	if oid == prefix {
		return true
	}
	return strings.HasPrefix(oid, prefix+".")
}

// normalizeWebhookPath reduces an endpoint path to its final segment so
// "/webhooks/prtg" and "prtg" address the same handler.
func normalizeWebhookPath(path string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}
