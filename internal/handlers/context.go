package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/notely/internal/middleware"
	"github.com/charlesng35/notely/pkg/errors"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentAccountID returns the account id set by the auth middleware.
func currentAccountID(c *gin.Context) (string, error) {
	id := c.GetString(middleware.CtxUserIDKey)
	if id == "" {
		return "", errors.ErrUnauthorized
	}
	return id, nil
}
