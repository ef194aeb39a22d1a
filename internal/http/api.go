package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/sirupsen/logrus"

	"small-library/internal/auth"
	apperrors "small-library/internal/errors"
	"small-library/internal/graph"
	"small-library/internal/ratelimit"
	"small-library/internal/service"
	"small-library/internal/storage"
)

// Options tunes request handling.
type Options struct {
	CORSOrigin     string
	RequestTimeout time.Duration
	// BatchLoading attaches per-request dataloaders to every GraphQL request.
	BatchLoading bool
	// BackupBucket and BackupPrefix locate catalog snapshots listed by
	// /api/backups. An empty bucket disables the route.
	BackupBucket string
	BackupPrefix string
	// TrustedProxies lists the proxy addresses or CIDRs whose
	// X-Forwarded-For header is believed. Empty trusts no proxy, so the
	// client address is the connection's remote address.
	TrustedProxies []string
	// ClientIPHeader names a header set by the hosting platform that carries
	// the client address. It wins over the remote address when present.
	ClientIPHeader string
}

// Deps are the collaborators the handler serves.
type Deps struct {
	Schema  *graphql.Schema
	Catalog service.CatalogService
	Users   service.UserService
	Tokens  *auth.TokenService
	// Limiter is optional; nil disables rate limiting.
	Limiter *ratelimit.KeyedRateLimiter
	// Storage is optional; nil disables /api/backups.
	Storage storage.Service
	Log     logrus.FieldLogger
}

// Handler wires HTTP routes to the GraphQL schema.
type Handler struct {
	Deps
	opts Options
}

func NewHandler(deps Deps, opts Options) *Handler {
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}
	return &Handler{Deps: deps, opts: opts}
}

// RegisterRoutes configures client address resolution on router and mounts
// the API.
func (h *Handler) RegisterRoutes(router *gin.Engine) error {
	if err := router.SetTrustedProxies(h.opts.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	router.TrustedPlatform = h.opts.ClientIPHeader

	router.Use(requestID(), h.logRequests(), corsMiddleware(h.opts.CORSOrigin))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	gql := router.Group("/graphql", h.rateLimit(), h.authenticate())
	{
		gql.POST("", h.graphql)
		gql.GET("", func(c *gin.Context) {
			c.Header("Allow", http.MethodPost)
			c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "send GraphQL requests as POST application/json"})
		})
	}

	api := router.Group("/api", h.rateLimit(), h.authenticate())
	{
		api.GET("/backups", h.listBackups)
	}

	router.NoRoute(func(c *gin.Context) {
		h.abortWithError(c, apperrors.NotFoundf("no route for %s %s", c.Request.Method, c.Request.URL.Path))
	})
	return nil
}

func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type graphqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

func (h *Handler) graphql(c *gin.Context) {
	var req graphqlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortWithError(c, apperrors.BadRequest("invalid request body: "+err.Error()))
		return
	}

	ctx := c.Request.Context()
	if h.opts.BatchLoading {
		ctx = graph.WithLoaders(ctx, h.Catalog)
	}

	resp := h.Schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
	for _, qe := range resp.Errors {
		if qe.ResolverError != nil && apperrors.CodeOf(qe.ResolverError) == apperrors.CodeInternal {
			h.logInternal(c, qe.ResolverError)
		}
	}
	c.JSON(http.StatusOK, resp)
}

type BackupResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func (h *Handler) listBackups(c *gin.Context) {
	if auth.UserFrom(c.Request.Context()) == nil {
		h.abortWithError(c, apperrors.ErrNotAuthenticated)
		return
	}
	if h.Storage == nil || h.opts.BackupBucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backup storage not configured"})
		return
	}

	objects, err := h.Storage.ListObjects(c.Request.Context(), h.opts.BackupBucket, h.opts.BackupPrefix)
	if err != nil {
		h.abortWithError(c, apperrors.Internal(err))
		return
	}

	resp := make([]BackupResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func objectToResponse(obj storage.ObjectInfo) BackupResponse {
	resp := BackupResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}

type errorBody struct {
	Errors []errorEntry `json:"errors"`
}

type errorEntry struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions"`
}

// abortWithError ends the request with a GraphQL-shaped error body and the
// status of the error's code.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	var apiErr *apperrors.Error
	if !errors.As(err, &apiErr) {
		apiErr = apperrors.Internal(err)
	}
	if apiErr.Code == apperrors.CodeInternal {
		h.logInternal(c, apiErr)
	}
	c.AbortWithStatusJSON(apiErr.HTTPStatus(), errorBody{
		Errors: []errorEntry{{Message: apiErr.Message, Extensions: apiErr.Extensions()}},
	})
}

func (h *Handler) logInternal(c *gin.Context, err error) {
	cause := errors.Unwrap(err)
	if cause == nil {
		cause = err
	}
	h.Log.WithFields(logrus.Fields{
		"request_id": c.GetString(requestIDKey),
		"path":       c.Request.URL.Path,
	}).WithError(cause).Error("internal error")
}
