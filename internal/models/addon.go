package models

import (
	"fmt"
	"strings"
	"time"
)

// Method is the transport an addon ingests through.
type Method string

const (
	MethodSNMPTrap Method = "snmp_trap"
	MethodWebhook  Method = "webhook"
	MethodAPIPoll  Method = "api_poll"
	MethodSNMPPoll Method = "snmp_poll"
	MethodSSH      Method = "ssh"
)

// Valid reports whether m is one of the supported transports.
func (m Method) Valid() bool {
	switch m {
	case MethodSNMPTrap, MethodWebhook, MethodAPIPoll, MethodSNMPPoll, MethodSSH:
		return true
	}
	return false
}

// ParserType selects the extraction strategy for an addon's payloads.
type ParserType string

const (
	ParserJSON     ParserType = "json"
	ParserSNMP     ParserType = "snmp"
	ParserRegex    ParserType = "regex"
	ParserGrok     ParserType = "grok"
	ParserKeyValue ParserType = "key_value"
)

// Manifest is the declarative JSON document defining one vendor/source
// integration. Manifests are validated at install time and immutable
// afterwards; field names follow the manifest wire format.
type Manifest struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Version     string `json:"version" validate:"required"`
	Category    string `json:"category"`
	Method      Method `json:"method" validate:"required"`
	Description string `json:"description,omitempty"`

	Parser ParserSpec `json:"parser"`

	SNMPTrap *SNMPTrapSpec `json:"snmp_trap,omitempty"`
	Webhook  *WebhookSpec  `json:"webhook,omitempty"`
	APIPoll  *APIPollSpec  `json:"api_poll,omitempty"`
	SNMPPoll *SNMPPollSpec `json:"snmp_poll,omitempty"`
	SSH      *SSHSpec      `json:"ssh,omitempty"`

	// Grouped alert mapping form.
	AlertMappings []AlertMappingGroup `json:"alert_mappings,omitempty"`

	// Flat alert mapping form, keyed by alert_type. Both forms are accepted;
	// the Addon accessors normalize them.
	SeverityMappings     map[string]Severity `json:"severity_mappings,omitempty"`
	CategoryMappings     map[string]string   `json:"category_mappings,omitempty"`
	TitleTemplates       map[string]string   `json:"title_templates,omitempty"`
	DescriptionTemplates map[string]string   `json:"description_templates,omitempty"`

	ClearEvents *ClearEventsSpec `json:"clear_events,omitempty"`
}

// ParserSpec configures the parse engine for one addon.
type ParserSpec struct {
	Type           ParserType        `json:"type"`
	FieldMappings  map[string]string `json:"field_mappings,omitempty"`
	Pattern        string            `json:"pattern,omitempty"`
	Fields         []string          `json:"fields,omitempty"`
	GrokPattern    string            `json:"grok_pattern,omitempty"`
	CustomPatterns map[string]string `json:"custom_patterns,omitempty"`
	Delimiter      string            `json:"delimiter,omitempty"`
	Transformations []Transformation `json:"transformations,omitempty"`
}

// Transformation mutates one extracted field after parsing.
type Transformation struct {
	Field   string            `json:"field"`
	Type    string            `json:"type"` // lookup, datetime, extract_ip, lowercase, uppercase
	Map     map[string]string `json:"map,omitempty"`
	Format  string            `json:"format,omitempty"`
	Pattern string            `json:"pattern,omitempty"`
}

// TrapDefinition classifies one trap OID.
type TrapDefinition struct {
	AlertType   string `json:"alert_type"`
	Description string `json:"description,omitempty"`
	ClearOID    string `json:"clear_oid,omitempty"`
}

// SNMPTrapSpec is the transport block for method snmp_trap.
type SNMPTrapSpec struct {
	EnterpriseOID   string                    `json:"enterprise_oid"`
	TrapDefinitions map[string]TrapDefinition `json:"trap_definitions"`
	VarbindMappings map[string]string         `json:"varbind_mappings,omitempty"`
}

// WebhookSpec is the transport block for method webhook.
type WebhookSpec struct {
	EndpointPath string `json:"endpoint_path"`
}

// APIPollEndpoint is one HTTP probe inside an api_poll addon.
type APIPollEndpoint struct {
	Path           string `json:"path"`
	Method         string `json:"method,omitempty"`
	AlertOnFailure string `json:"alert_on_failure,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// APIPollSpec is the transport block for method api_poll.
type APIPollSpec struct {
	BaseURLTemplate    string            `json:"base_url_template"`
	Endpoints          []APIPollEndpoint `json:"endpoints"`
	AuthType           string            `json:"auth_type,omitempty"`
	DefaultCredentials map[string]string `json:"default_credentials,omitempty"`
}

// AlertCondition raises an alert when a polled value matches.
type AlertCondition struct {
	Field     string `json:"field"`
	Operator  string `json:"operator"` // equals, not_equals, greater_than, less_than, contains
	Value     any    `json:"value"`
	AlertType string `json:"alert_type"`
}

// PollGroup is one batch of OIDs fetched together during snmp_poll.
type PollGroup struct {
	OIDs            []string         `json:"oids"`
	AlertConditions []AlertCondition `json:"alert_conditions"`
}

// SNMPPollSpec is the transport block for method snmp_poll.
type SNMPPollSpec struct {
	PollGroups []PollGroup `json:"poll_groups"`
}

// SSHCommand is one remote command executed during an ssh poll.
type SSHCommand struct {
	Command string `json:"command"`
	ParseAs string `json:"parse_as,omitempty"`
}

// SSHSpec is the transport block for method ssh.
type SSHSpec struct {
	Commands []SSHCommand `json:"commands"`
}

// ClearEventsSpec declares how recovery events are recognized.
type ClearEventsSpec struct {
	Method      string   `json:"method"` // suffix, field_value, oid_pair
	ClearSuffix string   `json:"clear_suffix,omitempty"`
	ClearField  string   `json:"clear_field,omitempty"`
	ClearValues []string `json:"clear_values,omitempty"`
}

// AlertMappingGroup is the grouped alert mapping form.
type AlertMappingGroup struct {
	Alerts []AlertMapping `json:"alerts"`
}

// AlertMapping classifies one alert_type in the grouped form. Enabled
// defaults to true when omitted.
type AlertMapping struct {
	AlertType   string   `json:"alert_type"`
	Severity    Severity `json:"severity,omitempty"`
	Category    string   `json:"category,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty"`
}

// Addon is an installed manifest plus its store metadata.
type Addon struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Method      Method    `json:"method"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Manifest    *Manifest `json:"manifest"`
	Enabled     bool      `json:"enabled"`
	InstalledAt time.Time `json:"installedAt"`
}

// groupedMapping finds the grouped-form mapping for an alert type, if any.
func (a *Addon) groupedMapping(alertType string) *AlertMapping {
	if a.Manifest == nil {
		return nil
	}
	for gi := range a.Manifest.AlertMappings {
		group := &a.Manifest.AlertMappings[gi]
		for mi := range group.Alerts {
			if group.Alerts[mi].AlertType == alertType {
				return &group.Alerts[mi]
			}
		}
	}
	return nil
}

// IsAlertEnabled reports whether the addon wants alerts of this type.
// Types absent from the mappings default to enabled: operators mute by
// listing a type with enabled=false, not by omission.
func (a *Addon) IsAlertEnabled(alertType string) bool {
	if m := a.groupedMapping(alertType); m != nil && m.Enabled != nil {
		return *m.Enabled
	}
	return true
}

// SeverityFor resolves the severity for an alert type from either mapping
// form, defaulting to warning.
func (a *Addon) SeverityFor(alertType string) Severity {
	if a.Manifest != nil {
		if s, ok := a.Manifest.SeverityMappings[alertType]; ok && s.Valid() {
			return s
		}
	}
	if m := a.groupedMapping(alertType); m != nil && m.Severity.Valid() {
		return m.Severity
	}
	return SeverityWarning
}

// CategoryFor resolves the category for an alert type, defaulting to the
// addon category.
func (a *Addon) CategoryFor(alertType string) string {
	if a.Manifest != nil {
		if c, ok := a.Manifest.CategoryMappings[alertType]; ok && c != "" {
			return c
		}
	}
	if m := a.groupedMapping(alertType); m != nil && m.Category != "" {
		return m.Category
	}
	return a.Category
}

// TitleFor resolves the mapped title for an alert type; empty when no
// mapping declares one (the engine then builds a default title).
func (a *Addon) TitleFor(alertType string) string {
	if a.Manifest != nil {
		if t, ok := a.Manifest.TitleTemplates[alertType]; ok && t != "" {
			return t
		}
	}
	if m := a.groupedMapping(alertType); m != nil && m.Title != "" {
		return m.Title
	}
	return ""
}

// DescriptionFor resolves the mapped description for an alert type.
func (a *Addon) DescriptionFor(alertType string) string {
	if a.Manifest != nil {
		if d, ok := a.Manifest.DescriptionTemplates[alertType]; ok && d != "" {
			return d
		}
	}
	if m := a.groupedMapping(alertType); m != nil && m.Description != "" {
		return m.Description
	}
	return ""
}

// String implements fmt.Stringer for log fields.
func (a *Addon) String() string {
	return fmt.Sprintf("%s@%s", a.ID, a.Version)
}

// TitleCase renders an alert_type slug for display: "link_down" -> "Link Down".
func TitleCase(alertType string) string {
	words := strings.FieldsFunc(alertType, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
