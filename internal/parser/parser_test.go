package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

func jsonAddon(spec models.ParserSpec) *models.Addon {
	return &models.Addon{
		ID: "prtg",
		Manifest: &models.Manifest{
			ID:     "prtg",
			Method: models.MethodWebhook,
			Parser: spec,
		},
	}
}

func TestParseJSONFieldMappings(t *testing.T) {
	addon := jsonAddon(models.ParserSpec{
		Type: models.ParserJSON,
		FieldMappings: map[string]string{
			"alert_type":  "$.alert.kind",
			"device_ip":   "$.device.address",
			"message":     "$.alert.text",
			"device_name": "host",
		},
	})

	payload := map[string]any{
		"host": "core-sw-01",
		"alert": map[string]any{
			"kind": "link_down",
			"text": "port 12 down",
		},
		"device": map[string]any{
			"address": "192.0.2.10",
		},
	}

	parsed, err := Parse(payload, addon)
	require.NoError(t, err)
	assert.Equal(t, "link_down", parsed.AlertType)
	assert.Equal(t, "192.0.2.10", parsed.DeviceIP)
	assert.Equal(t, "core-sw-01", parsed.DeviceName)
	assert.Equal(t, "port 12 down", parsed.Message)
}

func TestParseJSONArrayIndexPath(t *testing.T) {
	addon := jsonAddon(models.ParserSpec{
		Type: models.ParserJSON,
		FieldMappings: map[string]string{
			"alert_type": "$.events.0.type",
			"device_ip":  "$.events.0.ip",
		},
	})

	payload := map[string]any{
		"events": []any{
			map[string]any{"type": "cpu_high", "ip": "10.1.1.1"},
		},
	}

	parsed, err := Parse(payload, addon)
	require.NoError(t, err)
	assert.Equal(t, "cpu_high", parsed.AlertType)
	assert.Equal(t, "10.1.1.1", parsed.DeviceIP)
}

func TestParseJSONMissingPathsDoNotFail(t *testing.T) {
	addon := jsonAddon(models.ParserSpec{
		Type: models.ParserJSON,
		FieldMappings: map[string]string{
			"alert_type": "kind",
			"message":    "$.not.there",
		},
	})

	parsed, err := Parse(map[string]any{"kind": "fan_failure"}, addon)
	require.NoError(t, err)
	assert.Equal(t, "fan_failure", parsed.AlertType)
	assert.Empty(t, parsed.Message)
}

func TestParseJSONDeviceIPFallsBackToSourceIP(t *testing.T) {
	addon := jsonAddon(models.ParserSpec{
		Type:          models.ParserJSON,
		FieldMappings: map[string]string{"alert_type": "kind"},
	})

	payload := map[string]any{
		"kind":      "link_down",
		"source_ip": "198.51.100.7",
	}
	parsed, err := Parse(payload, addon)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", parsed.DeviceIP)
}

func TestParseJSONNumbersStringifyWithoutDecimal(t *testing.T) {
	addon := jsonAddon(models.ParserSpec{
		Type: models.ParserJSON,
		FieldMappings: map[string]string{
			"alert_type": "kind",
			"port":       "port",
		},
	})

	parsed, err := Parse(map[string]any{"kind": "link_down", "port": float64(24)}, addon)
	require.NoError(t, err)
	assert.Equal(t, "24", parsed.Fields["port"])
}

func TestParseRejectsMissingAlertType(t *testing.T) {
	addon := jsonAddon(models.ParserSpec{
		Type:          models.ParserJSON,
		FieldMappings: map[string]string{"message": "text"},
	})

	_, err := Parse(map[string]any{"text": "hello"}, addon)
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestParseRegexPositionalFields(t *testing.T) {
	addon := jsonAddon(models.ParserSpec{
		Type:    models.ParserRegex,
		Pattern: `^(\S+) (\S+): (.+)$`,
		Fields:  []string{"device_ip", "alert_type", "message"},
	})

	parsed, err := Parse("10.2.3.4 bgp_down: neighbor 10.9.9.9 lost", addon)
	require.NoError(t, err)
	assert.Equal(t, "bgp_down", parsed.AlertType)
	assert.Equal(t, "10.2.3.4", parsed.DeviceIP)
	assert.Equal(t, "neighbor 10.9.9.9 lost", parsed.Message)
}

func TestParseRegexNoMatch(t *testing.T) {
	addon := jsonAddon(models.ParserSpec{
		Type:    models.ParserRegex,
		Pattern: `^ALARM (\w+)$`,
		Fields:  []string{"alert_type"},
	})

	_, err := Parse("nothing alarming here", addon)
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestParseKeyValue(t *testing.T) {
	addon := jsonAddon(models.ParserSpec{
		Type:      models.ParserKeyValue,
		Delimiter: "=",
		FieldMappings: map[string]string{
			"event": "alert_type",
			"addr":  "device_ip",
		},
	})

	input := "event=psu_failure\naddr=172.16.0.5\nslot=2"
	parsed, err := Parse(input, addon)
	require.NoError(t, err)
	assert.Equal(t, "psu_failure", parsed.AlertType)
	assert.Equal(t, "172.16.0.5", parsed.DeviceIP)
	assert.Equal(t, "2", parsed.Fields["slot"])
}

func TestParseSNMPTrapDefinitions(t *testing.T) {
	addon := &models.Addon{
		ID: "apc-ups",
		Manifest: &models.Manifest{
			ID:     "apc-ups",
			Method: models.MethodSNMPTrap,
			Parser: models.ParserSpec{Type: models.ParserSNMP},
			SNMPTrap: &models.SNMPTrapSpec{
				EnterpriseOID: "1.3.6.1.4.1.318",
				TrapDefinitions: map[string]models.TrapDefinition{
					"1.3.6.1.4.1.318.0.5": {
						AlertType:   "on_battery",
						Description: "UPS switched to battery power",
						ClearOID:    "1.3.6.1.4.1.318.0.9",
					},
				},
				VarbindMappings: map[string]string{
					"1.3.6.1.4.1.318.2.3.1.0": "runtime_remaining",
				},
			},
		},
	}

	src := &TrapSource{
		SourceIP:      "10.0.5.20",
		TrapOID:       "1.3.6.1.4.1.318.0.5",
		EnterpriseOID: "1.3.6.1.4.1.318",
		Varbinds: map[string]string{
			"1.3.6.1.4.1.318.2.3.1.0": "1200",
		},
	}

	parsed, err := Parse(src, addon)
	require.NoError(t, err)
	assert.Equal(t, "on_battery", parsed.AlertType)
	assert.Equal(t, "10.0.5.20", parsed.DeviceIP)
	assert.Equal(t, "UPS switched to battery power", parsed.Message)
	assert.Equal(t, "1200", parsed.Fields["runtime_remaining"])
	assert.False(t, parsed.IsClear)
}

func TestParseSNMPClearTrapDefaultsToOIDPair(t *testing.T) {
	addon := &models.Addon{
		ID: "apc-ups",
		Manifest: &models.Manifest{
			ID:     "apc-ups",
			Method: models.MethodSNMPTrap,
			Parser: models.ParserSpec{Type: models.ParserSNMP},
			SNMPTrap: &models.SNMPTrapSpec{
				EnterpriseOID: "1.3.6.1.4.1.318",
				TrapDefinitions: map[string]models.TrapDefinition{
					"1.3.6.1.4.1.318.0.9": {AlertType: "on_battery"},
				},
			},
		},
	}

	src := &TrapSource{
		SourceIP: "10.0.5.20",
		TrapOID:  "1.3.6.1.4.1.318.0.9",
		IsClear:  true,
	}

	parsed, err := Parse(src, addon)
	require.NoError(t, err)
	assert.True(t, parsed.IsClear)
}

func TestParseSNMPClearTrapWithoutOwnDefinition(t *testing.T) {
	// The clear OID appears only as the clear_oid of the raising
	// definition; it must still classify as that alert type.
	addon := &models.Addon{
		ID: "siklu",
		Manifest: &models.Manifest{
			ID:     "siklu",
			Method: models.MethodSNMPTrap,
			Parser: models.ParserSpec{Type: models.ParserSNMP},
			SNMPTrap: &models.SNMPTrapSpec{
				EnterpriseOID: "1.3.6.1.4.1.31926",
				TrapDefinitions: map[string]models.TrapDefinition{
					"1.3.6.1.4.1.31926.3.1.1": {
						AlertType: "link_down",
						ClearOID:  "1.3.6.1.4.1.31926.3.1.2",
					},
				},
			},
		},
	}

	src := &TrapSource{
		SourceIP: "10.1.2.3",
		TrapOID:  "1.3.6.1.4.1.31926.3.1.2",
		IsClear:  true,
	}

	parsed, err := Parse(src, addon)
	require.NoError(t, err)
	assert.Equal(t, "link_down", parsed.AlertType)
	assert.True(t, parsed.IsClear)
	assert.Equal(t, "10.1.2.3", parsed.DeviceIP)
}

func TestClearDetectionSuffix(t *testing.T) {
	addon := jsonAddon(models.ParserSpec{
		Type:          models.ParserJSON,
		FieldMappings: map[string]string{"alert_type": "kind"},
	})
	addon.Manifest.ClearEvents = &models.ClearEventsSpec{Method: "suffix"}

	parsed, err := Parse(map[string]any{"kind": "link_down_clear"}, addon)
	require.NoError(t, err)
	assert.True(t, parsed.IsClear)

	parsed, err = Parse(map[string]any{"kind": "link_down"}, addon)
	require.NoError(t, err)
	assert.False(t, parsed.IsClear)
}

func TestClearDetectionFieldValueCaseInsensitive(t *testing.T) {
	addon := jsonAddon(models.ParserSpec{
		Type: models.ParserJSON,
		FieldMappings: map[string]string{
			"alert_type": "kind",
			"state":      "state",
		},
	})
	addon.Manifest.ClearEvents = &models.ClearEventsSpec{
		Method:      "field_value",
		ClearField:  "state",
		ClearValues: []string{"OK", "Up"},
	}

	parsed, err := Parse(map[string]any{"kind": "link_down", "state": "ok"}, addon)
	require.NoError(t, err)
	assert.True(t, parsed.IsClear)

	parsed, err = Parse(map[string]any{"kind": "link_down", "state": "down"}, addon)
	require.NoError(t, err)
	assert.False(t, parsed.IsClear)
}

func TestParseTimestampLayouts(t *testing.T) {
	cases := map[string]time.Time{
		"2025-03-01T12:30:45Z":      time.Date(2025, 3, 1, 12, 30, 45, 0, time.UTC),
		"2025-03-01T12:30:45":       time.Date(2025, 3, 1, 12, 30, 45, 0, time.UTC),
		"2025-03-01 12:30:45":       time.Date(2025, 3, 1, 12, 30, 45, 0, time.UTC),
		"2025-03-01":                time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		"2025-03-01T14:30:45+02:00": time.Date(2025, 3, 1, 12, 30, 45, 0, time.UTC),
	}
	for input, want := range cases {
		got := parseTimestamp(input)
		require.NotNil(t, got, input)
		assert.True(t, got.Equal(want), input)
	}

	assert.Nil(t, parseTimestamp("not a timestamp"))
	assert.Nil(t, parseTimestamp("03/01/2025"))
}

func TestParseUnknownParserType(t *testing.T) {
	addon := jsonAddon(models.ParserSpec{Type: "yaml"})
	_, err := Parse("whatever", addon)
	assert.ErrorIs(t, err, ErrUnparsable)
}
