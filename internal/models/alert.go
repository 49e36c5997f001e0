package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Severity classifies how urgent an alert is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityClear    Severity = "clear"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityMinor, SeverityWarning, SeverityInfo, SeverityClear:
		return true
	}
	return false
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusSuppressed   AlertStatus = "suppressed"
	StatusResolved     AlertStatus = "resolved"
)

// Alert is a persisted record of an observed condition on a device.
// Deduplication is keyed by Fingerprint: the same logical condition maps to
// one row until it is resolved.
type Alert struct {
	ID              uuid.UUID       `json:"id"`
	AddonID         string          `json:"addonId"`
	Fingerprint     string          `json:"fingerprint"`
	DeviceIP        string          `json:"deviceIp"`
	DeviceName      string          `json:"deviceName,omitempty"`
	AlertType       string          `json:"alertType"`
	Severity        Severity        `json:"severity"`
	Category        string          `json:"category"`
	Title           string          `json:"title"`
	Message         string          `json:"message,omitempty"`
	Status          AlertStatus     `json:"status"`
	IsClear         bool            `json:"isClear"`
	OccurredAt      time.Time       `json:"occurredAt"`
	ReceivedAt      time.Time       `json:"receivedAt"`
	ResolvedAt      *time.Time      `json:"resolvedAt,omitempty"`
	OccurrenceCount int             `json:"occurrenceCount"`
	RawData         json.RawMessage `json:"rawData,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Open reports whether the alert still participates in deduplication.
func (a *Alert) Open() bool {
	return a.Status != StatusResolved
}

// Clone returns a deep copy of the alert so it can be safely shared across
// goroutines after publication on the event bus.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}

	clone := *a

	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		clone.ResolvedAt = &t
	}

	if len(a.RawData) > 0 {
		clone.RawData = append(json.RawMessage(nil), a.RawData...)
	}

	return &clone
}

// AlertFilter narrows List queries. Zero values mean "no constraint".
type AlertFilter struct {
	Status   []AlertStatus
	Severity []Severity
	AddonID  string
	DeviceIP string
	Limit    int
	Offset   int
}

// AlertStats aggregates alert counts for the stats endpoints.
type AlertStats struct {
	BySeverity  map[Severity]int    `json:"bySeverity"`
	ByStatus    map[AlertStatus]int `json:"byStatus"`
	ByAddon     map[string]int      `json:"byAddon"`
	TotalActive int                 `json:"totalActive"`
}
