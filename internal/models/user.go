package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is an access level in the flat hierarchy
// admin(4) > operator(3) > service(2) > viewer(1).
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleService  Role = "service"
	RoleViewer   Role = "viewer"
)

var roleLevels = map[Role]int{
	RoleAdmin:    4,
	RoleOperator: 3,
	RoleService:  2,
	RoleViewer:   1,
}

// Level returns the numeric rank of the role; unknown roles rank 0.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// HasPermission reports whether r grants at least the required role.
func (r Role) HasPermission(required Role) bool {
	return r.Level() >= required.Level()
}

// User is an account in the control plane.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

// APIKey is a stored key record. Only the hash is retained; the prefix is
// kept for display.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"keyPrefix"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the key is past its expiry.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// AuditEvent is one append-only audit log row.
type AuditEvent struct {
	ID        int64      `json:"id"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	Action    string     `json:"action"`
	Details   string     `json:"details,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// SystemSetting is one key/value row in system_settings.
type SystemSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}
