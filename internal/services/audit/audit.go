// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package audit appends security events to the audit log.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/metrics"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/repository"
	"github.com/google/uuid"
)

// Audit actions written by the recovery flows.
const (
	ActionPasswordResetSelfService = "password_reset_self_service"
	ActionPasswordResetAdminToken  = "password_reset_admin_token"
	ActionAdminRecoveryIssued      = "admin_recovery_token_issued"
	ActionInvitationCreated        = "invitation_created"
	ActionInvitationAccepted       = "invitation_accepted"
)

// Entity types.
const (
	EntityUser       = "user"
	EntityInvitation = "invitation"
)

// Event describes one security event.
type Event struct {
	EntityType  string
	EntityID    string
	Action      string
	ActorUserID *int64
	ActorEmail  string
	Before      any
	After       any
	Metadata    map[string]any
}

// UserID formats a user ID as an entity ID.
func UserID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Recorder writes audit entries. It never fails its caller.
type Recorder struct {
	repo    *repository.Repository
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRecorder creates a recorder. m may be nil.
func NewRecorder(repo *repository.Repository, m *metrics.Metrics) *Recorder {
	return &Recorder{repo: repo, metrics: m, now: time.Now}
}

// WithClock returns a copy of the recorder using now as its time source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	cp := *r
	cp.now = now
	return &cp
}

// Record appends an entry for e. On failure the error is logged and counted
// and nil is returned.
func (r *Recorder) Record(ctx context.Context, e Event) *models.AuditEntry {
	entry := &models.AuditEntry{
		EventID:     uuid.NewString(),
		ActorUserID: e.ActorUserID,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Action:      e.Action,
		BeforeValue: encode(e.Before),
		AfterValue:  encode(e.After),
		Metadata:    encode(e.Metadata),
		CreatedAt:   r.now().UTC(),
	}
	if e.ActorEmail != "" {
		email := e.ActorEmail
		entry.ActorEmail = &email
	}

	if err := r.repo.InsertAuditEntry(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "audit_write_failed",
			"action", e.Action,
			"entity_type", e.EntityType,
			"entity_id", e.EntityID,
			"error", err,
		)
		r.metrics.RecordAuditWriteFailure(ctx, e.Action)
		return nil
	}

	return entry
}

// encode renders v as JSON. Strings are stored as is; nil and empty maps are omitted.
func encode(v any) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return &val
	case map[string]any:
		if len(val) == 0 {
			return nil
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		s := strconv.Quote(err.Error())
		return &s
	}
	s := string(b)
	return &s
}
