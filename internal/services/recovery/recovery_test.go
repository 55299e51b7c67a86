// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/repository"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/audit"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/recovery"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type sentCode struct {
	To      string
	Purpose models.Purpose
	Code    string
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (n *captureNotifier) SendVerificationCode(_ context.Context, to string, purpose models.Purpose, code string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentCode{To: to, Purpose: purpose, Code: code})
	return n.err
}

func (n *captureNotifier) last() sentCode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

// codeSequence yields the given codes in order, then repeats the last one.
func codeSequence(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[min(i, len(codes)-1)]
		i++
		return c, nil
	}
}

type env struct {
	repo     *repository.Repository
	clock    *testutil.Clock
	notifier *captureNotifier
	auth     *auth.Service
	issuer   *recovery.Issuer
	verifier *recovery.Verifier
	applier  *recovery.Applier
}

func newEnv(t *testing.T, codes ...string) *env {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	clock := testutil.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	notifier := &captureNotifier{}
	authSvc := auth.NewService(repo, 8).WithCost(bcrypt.MinCost)

	opts := []recovery.Option{recovery.WithClock(clock.Now)}
	if len(codes) > 0 {
		opts = append(opts, recovery.WithCodeGenerator(codeSequence(codes...)))
	}

	return &env{
		repo:     repo,
		clock:    clock,
		notifier: notifier,
		auth:     authSvc,
		issuer:   recovery.NewIssuer(repo, notifier, recovery.DefaultPolicy(), opts...),
		verifier: recovery.NewVerifier(repo, recovery.DefaultPolicy(), opts...),
		applier:  recovery.NewApplier(repo, authSvc, audit.NewRecorder(repo, nil), opts...),
	}
}

func (e *env) issue(t *testing.T, subject string) recovery.IssueOutcome {
	t.Helper()
	out, err := e.issuer.IssueCode(context.Background(), recovery.IssueRequest{
		Subject: subject,
		Purpose: models.PurposePasswordReset,
	})
	require.NoError(t, err)
	return out
}

func (e *env) verify(t *testing.T, subject, code string) recovery.VerifyOutcome {
	t.Helper()
	out, err := e.verifier.Verify(context.Background(), subject, models.PurposePasswordReset, code)
	require.NoError(t, err)
	return out
}

func (e *env) record(t *testing.T, subject string) *models.RecoveryRecord {
	t.Helper()
	rec, err := e.repo.GetOpenRecoveryRecord(context.Background(), subject, models.PurposePasswordReset)
	require.NoError(t, err)
	return rec
}

// failingAuth fails PasswordHash and PrepareUser while fail is set.
type failingAuth struct {
	*auth.Service
	fail bool
}

var errStorage = errors.New("storage unavailable")

func (f *failingAuth) PasswordHash(user *models.User, password string) (string, error) {
	if f.fail {
		return "", errStorage
	}
	return f.Service.PasswordHash(user, password)
}

func (f *failingAuth) PrepareUser(params auth.NewUser) (*models.User, error) {
	if f.fail {
		return nil, errStorage
	}
	return f.Service.PrepareUser(params)
}

// hookAuth runs before ahead of every PasswordHash and PrepareUser call.
type hookAuth struct {
	*auth.Service
	before func()
}

func (h *hookAuth) PasswordHash(user *models.User, password string) (string, error) {
	h.before()
	return h.Service.PasswordHash(user, password)
}

func (h *hookAuth) PrepareUser(params auth.NewUser) (*models.User, error) {
	h.before()
	return h.Service.PrepareUser(params)
}
