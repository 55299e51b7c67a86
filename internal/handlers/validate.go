// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/i18n"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator that reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

// bind decodes and validates the request body into req. It writes the 400
// response itself and returns ok=false when the input is malformed.
func bind(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, map[string]any{
			"error": i18n.T(c.Request().Context(), "validation_failed"),
		})
	}

	if err := c.Validate(req); err != nil {
		fields := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		return false, c.JSON(http.StatusBadRequest, map[string]any{
			"error":  i18n.T(c.Request().Context(), "validation_failed"),
			"fields": fields,
		})
	}

	return true, nil
}
