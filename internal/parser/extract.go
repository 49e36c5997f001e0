package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

// parseJSON walks field_mappings {target_field -> path} over an already
// decoded JSON object. Missing paths simply produce no entry.
func parseJSON(payload map[string]any, spec *models.ParserSpec) map[string]string {
	fields := make(map[string]string)
	for target, path := range spec.FieldMappings {
		if value, ok := jsonPath(payload, path); ok {
			fields[target] = stringify(value)
		}
	}
	return fields
}

// jsonPath resolves either a "$.a.b.0.c" dot-descent path (array indices as
// integer tokens) or a bare top-level key.
func jsonPath(payload map[string]any, path string) (any, bool) {
	if !strings.HasPrefix(path, "$.") {
		v, ok := payload[path]
		return v, ok
	}

	var current any = payload
	for _, token := range strings.Split(strings.TrimPrefix(path, "$."), ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[token]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(token)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		// JSON numbers decode as float64; render integers without a decimal.
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// parseSNMP classifies a trap through the manifest's trap_definitions and
// copies mapped varbinds into fields.
func parseSNMP(src *TrapSource, spec *models.SNMPTrapSpec) map[string]string {
	fields := map[string]string{
		FieldDeviceIP: src.SourceIP,
	}
	if spec == nil {
		return fields
	}

	trapOID := strings.TrimPrefix(src.TrapOID, ".")
	for oid, def := range spec.TrapDefinitions {
		if strings.TrimPrefix(oid, ".") != trapOID {
			continue
		}
		fields[FieldAlertType] = def.AlertType
		if def.Description != "" {
			fields[FieldMessage] = def.Description
		}
		break
	}

	// A clear trap usually has no definition of its own: it arrives as the
	// clear_oid of the raising definition and must classify as that
	// definition's alert type so the open alert can resolve.
	if _, ok := fields[FieldAlertType]; !ok {
		for _, def := range spec.TrapDefinitions {
			if def.ClearOID != "" && strings.TrimPrefix(def.ClearOID, ".") == trapOID {
				fields[FieldAlertType] = def.AlertType
				break
			}
		}
	}

	for oid, field := range spec.VarbindMappings {
		if value, ok := src.Varbinds[strings.TrimPrefix(oid, ".")]; ok {
			fields[field] = value
		}
	}
	return fields
}

func trapRawData(src *TrapSource) map[string]any {
	varbinds := make(map[string]any, len(src.Varbinds))
	for oid, v := range src.Varbinds {
		varbinds[oid] = v
	}
	return map[string]any{
		"source_ip":      src.SourceIP,
		"trap_oid":       src.TrapOID,
		"enterprise_oid": src.EnterpriseOID,
		"varbinds":       varbinds,
	}
}

// parseRegex matches the manifest pattern anywhere in the input; numbered
// capture groups map positionally onto spec.Fields.
func parseRegex(input string, spec *models.ParserSpec) (map[string]string, error) {
	re, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad regex pattern: %v", ErrUnparsable, err)
	}
	match := re.FindStringSubmatch(input)
	if match == nil {
		return nil, fmt.Errorf("%w: pattern did not match", ErrUnparsable)
	}

	fields := make(map[string]string)
	for i, name := range spec.Fields {
		if i+1 < len(match) && name != "" {
			fields[name] = match[i+1]
		}
	}
	return fields, nil
}

// parseKeyValue splits each line once on the delimiter (default ":"), trims
// both sides, and optionally renames keys through field_mappings.
func parseKeyValue(input string, spec *models.ParserSpec) map[string]string {
	delimiter := spec.Delimiter
	if delimiter == "" {
		delimiter = ":"
	}

	fields := make(map[string]string)
	for _, line := range strings.Split(input, "\n") {
		key, value, found := strings.Cut(line, delimiter)
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		if renamed, ok := spec.FieldMappings[key]; ok {
			key = renamed
		}
		fields[key] = value
	}
	return fields
}
