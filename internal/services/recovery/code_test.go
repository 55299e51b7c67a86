// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_Format(t *testing.T) {
	re := regexp.MustCompile(`^[0-9]{6}$`)

	for range 200 {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestGenerateCode_Varies(t *testing.T) {
	seen := make(map[string]struct{})
	for range 50 {
		code, err := GenerateCode()
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 40)
}

func TestHashCode(t *testing.T) {
	assert.Equal(t, HashCode("042517"), HashCode("042517"))
	assert.NotEqual(t, HashCode("042517"), HashCode("42517"))
	assert.Len(t, HashCode("000000"), 64)
}

func TestCodeMatches(t *testing.T) {
	stored := HashCode("042517")

	assert.True(t, codeMatches("042517", stored))
	assert.False(t, codeMatches("042518", stored))
	assert.False(t, codeMatches("", stored))
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 3, p.MaxIssuedPerWindow)
	assert.Equal(t, "10m0s", p.CodeTTL.String())
	assert.Equal(t, "1h0m0s", p.IssuanceWindow.String())
}

func TestNormalizeSubject(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeSubject("  A@X.com\t"))
}
