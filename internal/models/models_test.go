package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoleHierarchy(t *testing.T) {
	assert.True(t, RoleAdmin.HasPermission(RoleOperator))
	assert.True(t, RoleOperator.HasPermission(RoleViewer))
	assert.True(t, RoleService.HasPermission(RoleViewer))
	assert.False(t, RoleViewer.HasPermission(RoleOperator))
	assert.False(t, RoleService.HasPermission(RoleOperator))
	assert.False(t, Role("nobody").HasPermission(RoleViewer))

	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("superuser").Valid())
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Link Down", TitleCase("link_down"))
	assert.Equal(t, "Psu Failure", TitleCase("psu-failure"))
	assert.Equal(t, "Cpu", TitleCase("cpu"))
	assert.Equal(t, "", TitleCase(""))
}

func TestAddonMappingAccessors(t *testing.T) {
	muted := false
	addon := &Addon{
		ID:       "cisco",
		Name:     "Cisco",
		Category: "network",
		Manifest: &Manifest{
			SeverityMappings: map[string]Severity{"link_down": SeverityCritical},
			CategoryMappings: map[string]string{"link_down": "connectivity"},
			TitleTemplates:   map[string]string{"link_down": "Link lost"},
			AlertMappings: []AlertMappingGroup{{
				Alerts: []AlertMapping{
					{AlertType: "fan_failure", Severity: SeverityMinor, Category: "hardware"},
					{AlertType: "chatty_event", Enabled: &muted},
				},
			}},
		},
	}

	// Flat form wins where present.
	assert.Equal(t, SeverityCritical, addon.SeverityFor("link_down"))
	assert.Equal(t, "connectivity", addon.CategoryFor("link_down"))
	assert.Equal(t, "Link lost", addon.TitleFor("link_down"))

	// Grouped form.
	assert.Equal(t, SeverityMinor, addon.SeverityFor("fan_failure"))
	assert.Equal(t, "hardware", addon.CategoryFor("fan_failure"))

	// Defaults.
	assert.Equal(t, SeverityWarning, addon.SeverityFor("unmapped"))
	assert.Equal(t, "network", addon.CategoryFor("unmapped"))
	assert.Equal(t, "", addon.TitleFor("unmapped"))

	// Enablement: absent types default enabled, explicit false mutes.
	assert.True(t, addon.IsAlertEnabled("link_down"))
	assert.True(t, addon.IsAlertEnabled("unmapped"))
	assert.False(t, addon.IsAlertEnabled("chatty_event"))
}

func TestAlertClone(t *testing.T) {
	resolved := time.Now().UTC()
	original := &Alert{
		Status:     StatusResolved,
		ResolvedAt: &resolved,
		RawData:    []byte(`{"a":1}`),
	}

	clone := original.Clone()
	clone.Status = StatusActive
	*clone.ResolvedAt = resolved.Add(time.Hour)
	clone.RawData[0] = 'X'

	assert.Equal(t, StatusResolved, original.Status)
	assert.True(t, original.ResolvedAt.Equal(resolved))
	assert.Equal(t, byte('{'), original.RawData[0])

	var nilAlert *Alert
	assert.Nil(t, nilAlert.Clone())
}

func TestAlertOpen(t *testing.T) {
	assert.True(t, (&Alert{Status: StatusActive}).Open())
	assert.True(t, (&Alert{Status: StatusAcknowledged}).Open())
	assert.False(t, (&Alert{Status: StatusResolved}).Open())
}

func TestTargetDue(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-10 * time.Minute)
	recent := now.Add(-30 * time.Second)

	never := &Target{Enabled: true, PollIntervalSeconds: 300}
	assert.True(t, never.Due(now))

	overdue := &Target{Enabled: true, PollIntervalSeconds: 300, LastPollAt: &past}
	assert.True(t, overdue.Due(now))

	fresh := &Target{Enabled: true, PollIntervalSeconds: 300, LastPollAt: &recent}
	assert.False(t, fresh.Due(now))

	disabled := &Target{Enabled: false, PollIntervalSeconds: 300}
	assert.False(t, disabled.Due(now))
}

func TestTargetConfigString(t *testing.T) {
	target := &Target{Config: map[string]any{
		"community": "private",
		"port":      161,
	}}
	assert.Equal(t, "private", target.ConfigString("community"))
	assert.Equal(t, "", target.ConfigString("port")) // not a string
	assert.Equal(t, "", target.ConfigString("missing"))
	assert.Equal(t, "", (&Target{}).ConfigString("community"))
}

func TestAPIKeyExpired(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.False(t, (&APIKey{}).Expired(now))
	assert.False(t, (&APIKey{ExpiresAt: &future}).Expired(now))
	assert.True(t, (&APIKey{ExpiresAt: &past}).Expired(now))
}

func TestSeverityAndStatusValid(t *testing.T) {
	assert.True(t, SeverityCritical.Valid())
	assert.True(t, SeverityClear.Valid())
	assert.False(t, Severity("catastrophic").Valid())

	assert.True(t, MethodSNMPTrap.Valid())
	assert.False(t, Method("smoke_signal").Valid())
}
