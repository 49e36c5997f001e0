package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

func TestGrokNamedCaptures(t *testing.T) {
	spec := &models.ParserSpec{
		Type:        models.ParserGrok,
		GrokPattern: `%{IPV4:device_ip} %{WORD:alert_type}: %{GREEDYDATA:message}`,
	}

	fields, err := parseGrok("10.0.0.1 link_down: interface Gi0/1 went down", spec)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", fields["device_ip"])
	assert.Equal(t, "link_down", fields["alert_type"])
	assert.Equal(t, "interface Gi0/1 went down", fields["message"])
}

func TestGrokCustomPatternsShadowBuiltins(t *testing.T) {
	spec := &models.ParserSpec{
		Type:           models.ParserGrok,
		GrokPattern:    `%{SEVERITY:severity} %{WORD:alert_type}`,
		CustomPatterns: map[string]string{"SEVERITY": `(?:CRIT|MAJOR|MINOR)`},
	}

	fields, err := parseGrok("CRIT psu_failure", spec)
	require.NoError(t, err)
	assert.Equal(t, "CRIT", fields["severity"])
	assert.Equal(t, "psu_failure", fields["alert_type"])
}

func TestGrokNestedPatternExpansion(t *testing.T) {
	// NUMBER expands through BASE10NUM.
	spec := &models.ParserSpec{
		Type:        models.ParserGrok,
		GrokPattern: `load=%{NUMBER:load}`,
	}

	fields, err := parseGrok("load=3.75", spec)
	require.NoError(t, err)
	assert.Equal(t, "3.75", fields["load"])
}

func TestGrokUnknownPatternStaysLiteral(t *testing.T) {
	spec := &models.ParserSpec{
		Type:        models.ParserGrok,
		GrokPattern: `%{NOPE:x} %{WORD:alert_type}`,
	}

	// The literal "%{NOPE:x}" must appear in the input for a match.
	fields, err := parseGrok("%{NOPE:x} link_down", spec)
	require.NoError(t, err)
	assert.Equal(t, "link_down", fields["alert_type"])
	assert.NotContains(t, fields, "x")
}

func TestGrokTimestampPattern(t *testing.T) {
	spec := &models.ParserSpec{
		Type:        models.ParserGrok,
		GrokPattern: `%{TIMESTAMP_ISO8601:timestamp} %{WORD:alert_type}`,
	}

	fields, err := parseGrok("2025-03-01T12:30:45Z fan_failure", spec)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T12:30:45Z", fields["timestamp"])
}

func TestGrokNoMatch(t *testing.T) {
	spec := &models.ParserSpec{
		Type:        models.ParserGrok,
		GrokPattern: `^ALERT %{WORD:alert_type}$`,
	}
	_, err := parseGrok("nothing here", spec)
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestGrokEmptyPattern(t *testing.T) {
	spec := &models.ParserSpec{Type: models.ParserGrok}
	_, err := parseGrok("input", spec)
	assert.ErrorIs(t, err, ErrUnparsable)
}
