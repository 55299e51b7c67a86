// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// AuditEntry is an append-only security event.
// ActorUserID is nil when the actor is the unauthenticated subject.
type AuditEntry struct { //nolint:govet // fieldalignment: readability over optimization
	ID          int64     `db:"id" json:"id"`
	EventID     string    `db:"event_id" json:"event_id"`
	ActorUserID *int64    `db:"actor_user_id" json:"actor_user_id,omitempty"`
	ActorEmail  *string   `db:"actor_email" json:"actor_email,omitempty"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Action      string    `db:"action" json:"action"`
	BeforeValue *string   `db:"before_value" json:"before_value,omitempty"`
	AfterValue  *string   `db:"after_value" json:"after_value,omitempty"`
	Metadata    *string   `db:"metadata" json:"metadata,omitempty"` // JSON object
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
