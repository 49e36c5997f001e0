package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/store"
)

// fakeAddonStore keeps installed addons in memory.
type fakeAddonStore struct {
	mu     sync.Mutex
	addons map[string]*models.Addon
}

func newFakeAddonStore() *fakeAddonStore {
	return &fakeAddonStore{addons: make(map[string]*models.Addon)}
}

func (f *fakeAddonStore) ListAddons(_ context.Context, enabledOnly bool) ([]*models.Addon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Addon
	for _, a := range f.addons {
		if enabledOnly && !a.Enabled {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAddonStore) GetAddon(_ context.Context, id string) (*models.Addon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addons[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeAddonStore) UpsertAddon(_ context.Context, m *models.Manifest, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addons[m.ID] = &models.Addon{
		ID:       m.ID,
		Name:     m.Name,
		Version:  m.Version,
		Method:   m.Method,
		Category: m.Category,
		Manifest: m,
		Enabled:  enabled,
	}
	return nil
}

func (f *fakeAddonStore) DeleteAddon(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.addons[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.addons, id)
	return nil
}

func (f *fakeAddonStore) SetAddonEnabled(_ context.Context, id string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addons[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Enabled = enabled
	return nil
}

func trapManifest(id, enterpriseOID string) *models.Manifest {
	return &models.Manifest{
		ID:      id,
		Name:    id,
		Version: "1.0.0",
		Method:  models.MethodSNMPTrap,
		Parser:  models.ParserSpec{Type: models.ParserSNMP},
		SNMPTrap: &models.SNMPTrapSpec{
			EnterpriseOID: enterpriseOID,
			TrapDefinitions: map[string]models.TrapDefinition{
				enterpriseOID + ".0.1": {AlertType: "generic_event"},
			},
		},
	}
}

func webhookManifest(id, path string) *models.Manifest {
	return &models.Manifest{
		ID:      id,
		Name:    id,
		Version: "1.0.0",
		Method:  models.MethodWebhook,
		Parser: models.ParserSpec{
			Type:          models.ParserJSON,
			FieldMappings: map[string]string{"alert_type": "kind"},
		},
		Webhook: &models.WebhookSpec{EndpointPath: path},
	}
}

func TestInstallAndGet(t *testing.T) {
	reg := New(newFakeAddonStore())
	ctx := context.Background()

	require.NoError(t, reg.Install(ctx, trapManifest("cisco", "1.3.6.1.4.1.9")))
	addon := reg.Get("cisco")
	require.NotNil(t, addon)
	assert.Equal(t, "cisco", addon.ID)
	assert.Nil(t, reg.Get("unknown"))
}

func TestFindByOIDLongestPrefixWins(t *testing.T) {
	reg := New(newFakeAddonStore())
	ctx := context.Background()

	require.NoError(t, reg.Install(ctx, trapManifest("cisco", "1.3.6.1.4.1.9")))
	require.NoError(t, reg.Install(ctx, trapManifest("cisco-stack", "1.3.6.1.4.1.9.9.41")))

	match := reg.FindByOID("1.3.6.1.4.1.9.9.41.2.0.1")
	require.NotNil(t, match)
	assert.Equal(t, "cisco-stack", match.ID)

	match = reg.FindByOID("1.3.6.1.4.1.9.1.2")
	require.NotNil(t, match)
	assert.Equal(t, "cisco", match.ID)
}

func TestFindByOIDComponentBoundaries(t *testing.T) {
	reg := New(newFakeAddonStore())
	ctx := context.Background()

	require.NoError(t, reg.Install(ctx, trapManifest("vendor-nine", "1.3.6.1.4.1.9")))

	// 1.3.6.1.4.1.99 shares the string prefix but not the component prefix.
	assert.Nil(t, reg.FindByOID("1.3.6.1.4.1.99.1.1"))
	assert.NotNil(t, reg.FindByOID("1.3.6.1.4.1.9"))
}

func TestFindByOIDTieBreaksByAddonID(t *testing.T) {
	reg := New(newFakeAddonStore())
	ctx := context.Background()

	require.NoError(t, reg.Install(ctx, trapManifest("bravo", "1.3.6.1.4.1.7")))
	require.NoError(t, reg.Install(ctx, trapManifest("alpha", "1.3.6.1.4.1.8")))

	// Equal-length prefixes: neither matches the other's tree, but a shared
	// parent lookup must be deterministic. Install two with the same prefix.
	require.NoError(t, reg.Install(ctx, trapManifest("zeta", "1.3.6.1.4.1.7")))

	match := reg.FindByOID("1.3.6.1.4.1.7.0.1")
	require.NotNil(t, match)
	assert.Equal(t, "bravo", match.ID)
}

func TestFindByOIDNormalizesLeadingDot(t *testing.T) {
	reg := New(newFakeAddonStore())
	ctx := context.Background()

	manifest := trapManifest("apc", "1.3.6.1.4.1.318")
	manifest.SNMPTrap.EnterpriseOID = ".1.3.6.1.4.1.318"
	require.NoError(t, reg.Install(ctx, manifest))

	assert.NotNil(t, reg.FindByOID(".1.3.6.1.4.1.318.0.5"))
	assert.NotNil(t, reg.FindByOID("1.3.6.1.4.1.318.0.5"))
}

func TestFindByWebhookNormalizesPath(t *testing.T) {
	reg := New(newFakeAddonStore())
	ctx := context.Background()

	require.NoError(t, reg.Install(ctx, webhookManifest("prtg", "/webhooks/prtg")))

	assert.NotNil(t, reg.FindByWebhook("prtg"))
	assert.NotNil(t, reg.FindByWebhook("/webhooks/prtg"))
	assert.Nil(t, reg.FindByWebhook("zabbix"))
}

func TestInstallRejectsDuplicateWebhookPath(t *testing.T) {
	reg := New(newFakeAddonStore())
	ctx := context.Background()

	require.NoError(t, reg.Install(ctx, webhookManifest("prtg", "prtg")))
	err := reg.Install(ctx, webhookManifest("prtg-clone", "/webhooks/prtg"))
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestInstallInvalidManifestLeavesSnapshot(t *testing.T) {
	reg := New(newFakeAddonStore())
	ctx := context.Background()

	require.NoError(t, reg.Install(ctx, trapManifest("cisco", "1.3.6.1.4.1.9")))

	bad := trapManifest("broken", "")
	bad.SNMPTrap.EnterpriseOID = ""
	err := reg.Install(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidManifest)

	assert.Nil(t, reg.Get("broken"))
	assert.NotNil(t, reg.Get("cisco"))
}

func TestDisableRemovesFromDispatch(t *testing.T) {
	reg := New(newFakeAddonStore())
	ctx := context.Background()

	require.NoError(t, reg.Install(ctx, webhookManifest("prtg", "prtg")))
	require.NoError(t, reg.Disable(ctx, "prtg"))

	assert.Nil(t, reg.Get("prtg"))
	assert.Nil(t, reg.FindByWebhook("prtg"))
	assert.Empty(t, reg.ListEnabled())

	require.NoError(t, reg.Enable(ctx, "prtg"))
	assert.NotNil(t, reg.FindByWebhook("prtg"))
}

func TestListByMethod(t *testing.T) {
	reg := New(newFakeAddonStore())
	ctx := context.Background()

	require.NoError(t, reg.Install(ctx, trapManifest("cisco", "1.3.6.1.4.1.9")))
	require.NoError(t, reg.Install(ctx, webhookManifest("prtg", "prtg")))

	traps := reg.ListByMethod(models.MethodSNMPTrap)
	require.Len(t, traps, 1)
	assert.Equal(t, "cisco", traps[0].ID)
}

func TestValidateManifestRules(t *testing.T) {
	valid := webhookManifest("prtg", "prtg")
	assert.NoError(t, ValidateManifest(valid))

	missingID := webhookManifest("", "prtg")
	assert.ErrorIs(t, ValidateManifest(missingID), ErrInvalidManifest)

	badMethod := webhookManifest("x", "x")
	badMethod.Method = "carrier_pigeon"
	assert.ErrorIs(t, ValidateManifest(badMethod), ErrInvalidManifest)

	noParser := webhookManifest("x", "x")
	noParser.Parser.Type = ""
	assert.ErrorIs(t, ValidateManifest(noParser), ErrInvalidManifest)

	noPath := webhookManifest("x", "")
	noPath.Webhook.EndpointPath = ""
	assert.ErrorIs(t, ValidateManifest(noPath), ErrInvalidManifest)

	badOperator := &models.Manifest{
		ID:      "poller",
		Name:    "poller",
		Version: "1.0.0",
		Method:  models.MethodSNMPPoll,
		Parser:  models.ParserSpec{Type: models.ParserSNMP},
		SNMPPoll: &models.SNMPPollSpec{
			PollGroups: []models.PollGroup{{
				OIDs: []string{"1.3.6.1.2.1.1.3.0"},
				AlertConditions: []models.AlertCondition{{
					Field:     "1.3.6.1.2.1.1.3.0",
					Operator:  "approximately",
					Value:     "1",
					AlertType: "weird",
				}},
			}},
		},
	}
	assert.ErrorIs(t, ValidateManifest(badOperator), ErrInvalidManifest)

	badClear := webhookManifest("x", "x")
	badClear.ClearEvents = &models.ClearEventsSpec{Method: "psychic"}
	assert.ErrorIs(t, ValidateManifest(badClear), ErrInvalidManifest)
}
