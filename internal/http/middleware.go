package http

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"small-library/internal/auth"
	apperrors "small-library/internal/errors"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	bearerPrefix    = "Bearer "
)

// requestID reuses the caller's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (h *Handler) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := h.Log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(requestIDKey),
		})
		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Limiter == nil {
			c.Next()
			return
		}
		if !h.Limiter.Allow(c.ClientIP()) {
			h.Log.WithFields(logrus.Fields{
				"client_ip": c.ClientIP(),
				"path":      c.Request.URL.Path,
			}).Warn("rate limit exceeded")
			h.abortWithError(c, apperrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}

// authenticate resolves the request's user from a Bearer token. Requests
// without one continue anonymously; a token that fails verification ends
// the request with 401.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if h.opts.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.opts.RequestTimeout)
			defer cancel()
		}

		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, bearerPrefix) {
			claims, err := h.Tokens.Verify(header[len(bearerPrefix):])
			if err != nil {
				h.abortWithError(c, err)
				return
			}
			user, err := h.Users.GetByID(ctx, claims.UserID)
			if err != nil {
				h.abortWithError(c, err)
				return
			}
			if user != nil {
				ctx = auth.WithUser(ctx, user)
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
