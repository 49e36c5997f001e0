// Package parser turns raw payloads into the uniform ParsedAlert record
// using an addon's manifest rules. Parsing is pure and stateless: the same
// input and manifest always produce the same result, and nothing here
// touches storage or the network.
package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

// ErrUnparsable is returned when a payload yields no usable alert: nothing
// matched, no fields were extracted, or the alert type cannot be determined.
var ErrUnparsable = errors.New("unparsable payload")

// TrapSource is the raw record handed over by the SNMP trap ingestor.
type TrapSource struct {
	SourceIP      string
	TrapOID       string
	EnterpriseOID string
	Varbinds      map[string]string
	IsClear       bool
}

// Well-known extracted field names. Anything else stays in ParsedAlert.Fields.
const (
	FieldAlertType  = "alert_type"
	FieldDeviceIP   = "device_ip"
	FieldDeviceName = "device_name"
	FieldMessage    = "message"
	FieldTimestamp  = "timestamp"
	FieldSourceIP   = "source_ip"
)

// Parse extracts fields from raw according to the addon's parser block,
// applies transformations, detects clear conditions, and assembles a
// ParsedAlert. raw is a *TrapSource for snmp addons, a map[string]any for
// json payloads, and a string or []byte for text parsers.
func Parse(raw any, addon *models.Addon) (*models.ParsedAlert, error) {
	if addon == nil || addon.Manifest == nil {
		return nil, fmt.Errorf("%w: addon has no manifest", ErrUnparsable)
	}
	spec := &addon.Manifest.Parser

	var (
		fields  map[string]string
		rawData map[string]any
		isClear bool
		err     error
	)

	switch spec.Type {
	case models.ParserJSON:
		payload, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: json parser expects an object payload", ErrUnparsable)
		}
		fields = parseJSON(payload, spec)
		rawData = payload
	case models.ParserSNMP:
		src, ok := raw.(*TrapSource)
		if !ok {
			return nil, fmt.Errorf("%w: snmp parser expects a trap source", ErrUnparsable)
		}
		fields = parseSNMP(src, addon.Manifest.SNMPTrap)
		rawData = trapRawData(src)
		isClear = src.IsClear
	case models.ParserRegex:
		fields, err = parseRegex(rawString(raw), spec)
		rawData = map[string]any{"raw": rawString(raw)}
	case models.ParserGrok:
		fields, err = parseGrok(rawString(raw), spec)
		rawData = map[string]any{"raw": rawString(raw)}
	case models.ParserKeyValue:
		fields = parseKeyValue(rawString(raw), spec)
		rawData = map[string]any{"raw": rawString(raw)}
	default:
		return nil, fmt.Errorf("%w: unknown parser type %q", ErrUnparsable, spec.Type)
	}
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields extracted", ErrUnparsable)
	}

	applyTransformations(fields, spec.Transformations)

	parsed := &models.ParsedAlert{
		AddonID:    addon.ID,
		AlertType:  fields[FieldAlertType],
		DeviceIP:   fields[FieldDeviceIP],
		DeviceName: fields[FieldDeviceName],
		Message:    fields[FieldMessage],
		RawData:    rawData,
		Fields:     fields,
	}

	if parsed.DeviceIP == "" {
		// Fall back to the transport-injected source address.
		if ip, ok := fields[FieldSourceIP]; ok {
			parsed.DeviceIP = ip
		} else if payload, ok := raw.(map[string]any); ok {
			if ip, ok := payload[FieldSourceIP].(string); ok {
				parsed.DeviceIP = ip
			}
		}
	}

	if parsed.AlertType == "" {
		return nil, fmt.Errorf("%w: alert_type not determined", ErrUnparsable)
	}

	if ts, ok := fields[FieldTimestamp]; ok {
		parsed.Timestamp = parseTimestamp(ts)
	}

	parsed.IsClear = detectClear(parsed, addon.Manifest, isClear)
	return parsed, nil
}

// detectClear applies the manifest clear_events policy. snmp_trap addons
// without an explicit policy default to oid_pair, since clear_oid pairs in
// the trap definitions are only meaningful that way.
func detectClear(parsed *models.ParsedAlert, m *models.Manifest, trapIsClear bool) bool {
	ce := m.ClearEvents
	if ce == nil {
		if m.Method == models.MethodSNMPTrap {
			return trapIsClear
		}
		return false
	}

	switch ce.Method {
	case "suffix":
		suffix := ce.ClearSuffix
		if suffix == "" {
			suffix = "_clear"
		}
		return strings.HasSuffix(parsed.AlertType, suffix)
	case "field_value":
		value, ok := parsed.Fields[ce.ClearField]
		if !ok {
			return false
		}
		for _, clear := range ce.ClearValues {
			if strings.EqualFold(value, clear) {
				return true
			}
		}
		return false
	case "oid_pair":
		return trapIsClear
	}
	return false
}

func rawString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", raw)
	}
}

// timestampLayouts are tried in order; all values are normalized to UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp returns nil when no layout matches; the engine then falls
// back to the receive time.
func parseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
