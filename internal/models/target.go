package models

import (
	"time"

	"github.com/google/uuid"
)

// Target is a device registered for periodic polling by some addon.
// (IPAddress, AddonID) is unique across targets.
type Target struct {
	ID                  uuid.UUID      `json:"id"`
	Name                string         `json:"name"`
	IPAddress           string         `json:"ipAddress"`
	AddonID             string         `json:"addonId,omitempty"`
	PollIntervalSeconds int            `json:"pollIntervalSeconds"`
	Enabled             bool           `json:"enabled"`
	Config              map[string]any `json:"config,omitempty"`
	LastPollAt          *time.Time     `json:"lastPollAt,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
}

// Due reports whether the target should be polled at now.
func (t *Target) Due(now time.Time) bool {
	if !t.Enabled {
		return false
	}
	if t.LastPollAt == nil {
		return true
	}
	interval := time.Duration(t.PollIntervalSeconds) * time.Second
	return !now.Before(t.LastPollAt.Add(interval))
}

// ConfigString fetches a string override from the target config.
func (t *Target) ConfigString(key string) string {
	if t.Config == nil {
		return ""
	}
	if v, ok := t.Config[key].(string); ok {
		return v
	}
	return ""
}
