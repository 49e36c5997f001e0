package models

import "time"

// ParsedAlert is the uniform record produced by the parse engine and
// consumed by the alert engine. It is transient and never persisted.
type ParsedAlert struct {
	AddonID    string
	AlertType  string
	DeviceIP   string
	DeviceName string
	Message    string
	Timestamp  *time.Time
	IsClear    bool
	RawData    map[string]any
	Fields     map[string]string
}
