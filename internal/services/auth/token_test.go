// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"testing"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	plaintext, hash, err := auth.GenerateToken()

	require.NoError(t, err)
	assert.Len(t, plaintext, 64)
	assert.Len(t, hash, 64)
	assert.NotEqual(t, plaintext, hash)
	assert.Equal(t, auth.HashToken(plaintext), hash)
}

func TestGenerateToken_Unique(t *testing.T) {
	tokens := make(map[string]bool)
	for range 100 {
		plaintext, _, err := auth.GenerateToken()
		require.NoError(t, err)
		assert.False(t, tokens[plaintext], "duplicate token generated")
		tokens[plaintext] = true
	}
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, auth.HashToken("abc"), auth.HashToken("abc"))
	assert.NotEqual(t, auth.HashToken("abc"), auth.HashToken("abd"))
}
