// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
)

// InsertAuditEntry appends an audit entry and sets its ID.
// Entries are never updated or deleted.
func (r *Repository) InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx,
		`INSERT INTO audit_entries
			(event_id, actor_user_id, actor_email, entity_type, entity_id, action,
			 before_value, after_value, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.ActorUserID, e.ActorEmail, e.EntityType, e.EntityID, e.Action,
		e.BeforeValue, e.AfterValue, e.Metadata, e.CreatedAt.UTC())
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListAuditEntries returns the entries for one entity, oldest first.
func (r *Repository) ListAuditEntries(ctx context.Context, entityType, entityID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := r.q.SelectContext(ctx, &entries,
		`SELECT * FROM audit_entries WHERE entity_type = ? AND entity_id = ? ORDER BY id`,
		entityType, entityID)
	return entries, err
}

// ListAuditEntriesByAction returns the entries with the given action, oldest first.
func (r *Repository) ListAuditEntriesByAction(ctx context.Context, action string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := r.q.SelectContext(ctx, &entries,
		`SELECT * FROM audit_entries WHERE action = ? ORDER BY id`, action)
	return entries, err
}
