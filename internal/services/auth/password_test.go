// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func codes(r ValidationResult) []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Code
	}
	return out
}

func TestNewPasswordValidator_Defaults(t *testing.T) {
	assert.Equal(t, DefaultMinPasswordLength, NewPasswordValidator(0).MinLength)
	assert.Equal(t, 12, NewPasswordValidator(12).MinLength)
}

func TestValidate(t *testing.T) {
	v := NewPasswordValidator(8)

	tests := []struct {
		name     string
		password string
		attrs    []string
		want     []string
	}{
		{"valid", "NewPass123", []string{"a@x.com"}, []string{}},
		{"too short", "Ab1!", nil, []string{"min_length"}},
		{"numeric", "1234567890123", nil, []string{"entirely_numeric"}},
		{"common", "password123", nil, []string{"common_password"}},
		{"contains email local part", "alice.smith99", []string{"alice.smith@example.com"}, []string{"too_similar"}},
		{"short attributes ignored", "NewPass123", []string{"a", "", "x@"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.password, tt.attrs...)
			assert.Equal(t, len(tt.want) == 0, res.Valid)
			assert.ElementsMatch(t, tt.want, codes(res))
		})
	}
}

func TestPasswordValidationError(t *testing.T) {
	empty := &PasswordValidationError{}
	assert.Equal(t, "password validation failed", empty.Error())

	err := &PasswordValidationError{Errors: []ValidationError{
		{Code: "a", Message: "first"},
		{Code: "b", Message: "second"},
	}}
	assert.Equal(t, "first", err.Error())
	assert.Equal(t, []string{"first", "second"}, err.Messages())
}

func TestCommonPasswordsLoaded(t *testing.T) {
	assert.NotEmpty(t, commonPasswords)
	assert.True(t, isCommonPassword("PASSWORD"))
	assert.False(t, isCommonPassword("NewPass123"))
}
