// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, config.LogConfig{Level: "warn", Format: "json"}))

	logger.Info("code_issued")
	assert.Empty(t, buf.String())

	logger.Warn("rate_limit_store_failed", "key", "recovery:192.0.2.1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "rate_limit_store_failed", record["msg"])
	assert.Equal(t, "helpdesk-recovery", record["service"])
	assert.Equal(t, "recovery:192.0.2.1", record["key"])
}

func TestNewLogHandler_TextDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, config.LogConfig{Level: "bogus"}))

	logger.Debug("hidden")
	logger.Info("code_issued", "purpose", "password_reset")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "code_issued")
	assert.Contains(t, out, "purpose=password_reset")
	assert.Contains(t, out, "service=helpdesk-recovery")
}
