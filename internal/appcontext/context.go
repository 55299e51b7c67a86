// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package appcontext provides the custom Echo context.
package appcontext

import (
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"github.com/labstack/echo/v4"
)

// Context is a custom Echo context carrying the signed-in user.
type Context struct {
	echo.Context
	User *models.User // nil if not authenticated
}

// GetUser returns the authenticated user, or nil if not authenticated.
func (c *Context) GetUser() *models.User {
	return c.User
}

// IsAuthenticated returns true if the user is authenticated.
func (c *Context) IsAuthenticated() bool {
	return c.User != nil
}

// Middleware wraps every request in a Context.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&Context{Context: c})
		}
	}
}

// UserFrom returns the authenticated user of c, or nil.
func UserFrom(c echo.Context) *models.User {
	if cc, ok := c.(*Context); ok {
		return cc.User
	}
	return nil
}

// SetUser stores user on c. It reports false if c is not a Context.
func SetUser(c echo.Context, user *models.User) bool {
	cc, ok := c.(*Context)
	if ok {
		cc.User = user
	}
	return ok
}
