package domain

import "time"

// Idempotency records an unsafe request keyed by (address, scope, key).
// Scope is the request path, so the same key may be reused against
// different resources. A row is claimed before the request runs, with
// Status IdempotencyPending, and completed afterwards with the response
// status and the ResourceID of the story or reply it produced.
type Idempotency struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	Address    string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_address_scope_key,priority:1"`
	Scope      string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_address_scope_key,priority:2"`
	Key        string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_address_scope_key,priority:3"`
	ResourceID string    `gorm:"type:varchar(64);not null"`
	Status     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// IdempotencyPending is the Status of a claim whose request has not finished.
const IdempotencyPending = 0

// Pending reports whether the request holding the key is still running.
func (i Idempotency) Pending() bool { return i.Status == IdempotencyPending }
