package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

func TestTransformLookup(t *testing.T) {
	fields := map[string]string{"severity": "1"}
	applyTransformations(fields, []models.Transformation{{
		Field: "severity",
		Type:  "lookup",
		Map:   map[string]string{"1": "critical", "2": "major"},
	}})
	assert.Equal(t, "critical", fields["severity"])
}

func TestTransformLookupMissAndAbsentFieldLeaveValues(t *testing.T) {
	fields := map[string]string{"severity": "9"}
	applyTransformations(fields, []models.Transformation{
		{Field: "severity", Type: "lookup", Map: map[string]string{"1": "critical"}},
		{Field: "missing", Type: "uppercase"},
	})
	assert.Equal(t, "9", fields["severity"])
	assert.NotContains(t, fields, "missing")
}

func TestTransformDatetime(t *testing.T) {
	fields := map[string]string{"timestamp": "01/03/2025 12:30:45"}
	applyTransformations(fields, []models.Transformation{{
		Field:  "timestamp",
		Type:   "datetime",
		Format: "02/01/2006 15:04:05",
	}})
	assert.Equal(t, "2025-03-01T12:30:45Z", fields["timestamp"])
}

func TestTransformDatetimeBadValueUntouched(t *testing.T) {
	fields := map[string]string{"timestamp": "not a date"}
	applyTransformations(fields, []models.Transformation{{
		Field:  "timestamp",
		Type:   "datetime",
		Format: "02/01/2006",
	}})
	assert.Equal(t, "not a date", fields["timestamp"])
}

func TestTransformExtractIP(t *testing.T) {
	fields := map[string]string{"device_ip": "router at 192.0.2.44 unreachable"}
	applyTransformations(fields, []models.Transformation{{
		Field: "device_ip",
		Type:  "extract_ip",
	}})
	assert.Equal(t, "192.0.2.44", fields["device_ip"])
}

func TestTransformCase(t *testing.T) {
	fields := map[string]string{"alert_type": "Link_Down", "state": "ok"}
	applyTransformations(fields, []models.Transformation{
		{Field: "alert_type", Type: "lowercase"},
		{Field: "state", Type: "uppercase"},
	})
	assert.Equal(t, "link_down", fields["alert_type"])
	assert.Equal(t, "OK", fields["state"])
}

func TestTransformationsApplyInDeclaredOrder(t *testing.T) {
	fields := map[string]string{"alert_type": "IFDOWN"}
	applyTransformations(fields, []models.Transformation{
		{Field: "alert_type", Type: "lowercase"},
		{Field: "alert_type", Type: "lookup", Map: map[string]string{"ifdown": "link_down"}},
	})
	assert.Equal(t, "link_down", fields["alert_type"])
}
