package registry

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

var validate = validator.New()

// ValidateManifest checks structural and cross-field rules before install.
// All failures wrap ErrInvalidManifest.
func ValidateManifest(m *models.Manifest) error {
	if m == nil {
		return fmt.Errorf("%w: empty manifest", ErrInvalidManifest)
	}
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if !m.Method.Valid() {
		return fmt.Errorf("%w: unknown method %q", ErrInvalidManifest, m.Method)
	}

	switch m.Parser.Type {
	case models.ParserJSON, models.ParserSNMP, models.ParserRegex, models.ParserGrok, models.ParserKeyValue:
	case "":
		return fmt.Errorf("%w: parser type is required", ErrInvalidManifest)
	default:
		return fmt.Errorf("%w: unknown parser type %q", ErrInvalidManifest, m.Parser.Type)
	}

	switch m.Method {
	case models.MethodSNMPTrap:
		if m.SNMPTrap == nil || m.SNMPTrap.EnterpriseOID == "" {
			return fmt.Errorf("%w: snmp_trap addons require enterprise_oid", ErrInvalidManifest)
		}
		for oid, def := range m.SNMPTrap.TrapDefinitions {
			if def.AlertType == "" {
				return fmt.Errorf("%w: trap definition %s has no alert_type", ErrInvalidManifest, oid)
			}
		}
	case models.MethodWebhook:
		if m.Webhook == nil || m.Webhook.EndpointPath == "" {
			return fmt.Errorf("%w: webhook addons require endpoint_path", ErrInvalidManifest)
		}
	case models.MethodAPIPoll:
		if m.APIPoll == nil || m.APIPoll.BaseURLTemplate == "" {
			return fmt.Errorf("%w: api_poll addons require base_url_template", ErrInvalidManifest)
		}
		if len(m.APIPoll.Endpoints) == 0 {
			return fmt.Errorf("%w: api_poll addons require at least one endpoint", ErrInvalidManifest)
		}
	case models.MethodSNMPPoll:
		if m.SNMPPoll == nil || len(m.SNMPPoll.PollGroups) == 0 {
			return fmt.Errorf("%w: snmp_poll addons require poll_groups", ErrInvalidManifest)
		}
		for _, g := range m.SNMPPoll.PollGroups {
			for _, c := range g.AlertConditions {
				switch c.Operator {
				case "equals", "not_equals", "greater_than", "less_than", "contains":
				default:
					return fmt.Errorf("%w: unknown alert condition operator %q", ErrInvalidManifest, c.Operator)
				}
				if c.AlertType == "" {
					return fmt.Errorf("%w: alert condition on %s has no alert_type", ErrInvalidManifest, c.Field)
				}
			}
		}
	case models.MethodSSH:
		if m.SSH == nil || len(m.SSH.Commands) == 0 {
			return fmt.Errorf("%w: ssh addons require commands", ErrInvalidManifest)
		}
	}

	if m.ClearEvents != nil {
		switch m.ClearEvents.Method {
		case "suffix", "field_value", "oid_pair":
		default:
			return fmt.Errorf("%w: unknown clear_events method %q", ErrInvalidManifest, m.ClearEvents.Method)
		}
	}

	return nil
}
