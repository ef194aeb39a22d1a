package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"small-library/internal/auth"
	"small-library/internal/domain"
	"small-library/internal/graph"
	apihttp "small-library/internal/http"
	"small-library/internal/ratelimit"
	"small-library/internal/repository"
	"small-library/internal/repository/memory"
	"small-library/internal/service"
	"small-library/internal/storage"
	"small-library/internal/validation"
)

type server struct {
	router *gin.Engine
	repos  repository.Repositories
	tokens *auth.TokenService
}

func defaultOptions() apihttp.Options {
	return apihttp.Options{
		RequestTimeout: 5 * time.Second,
		BatchLoading:   true,
		BackupBucket:   "bucket",
		BackupPrefix:   "library-backups/",
	}
}

func newServer(t *testing.T, limiter *ratelimit.KeyedRateLimiter, store storage.Service) *server {
	t.Helper()
	return newServerWithOptions(t, limiter, store, defaultOptions())
}

func newServerWithOptions(t *testing.T, limiter *ratelimit.KeyedRateLimiter, store storage.Service, opts apihttp.Options) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	repos := repository.WithValidation(memory.New().Repositories(), validation.New())
	tokens, err := auth.NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)

	catalog := service.NewCatalogService(repos)
	users := service.NewUserService(repos.Users, tokens, auth.NewCredentials("secret", ""))

	handler := apihttp.NewHandler(apihttp.Deps{
		Schema:  graph.NewSchema(catalog, users, log, graph.Options{MaxParallelism: 4}),
		Catalog: catalog,
		Users:   users,
		Tokens:  tokens,
		Limiter: limiter,
		Storage: store,
		Log:     log,
	}, opts)

	router := gin.New()
	router.Use(gin.Recovery())
	require.NoError(t, handler.RegisterRoutes(router))
	return &server{router: router, repos: repos, tokens: tokens}
}

type response struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
}

func (s *server) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *server) query(t *testing.T, query string, vars map[string]any, token string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	require.NoError(t, err)

	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	rec := s.do(t, http.MethodPost, "/graphql", string(body), headers)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func (s *server) login(t *testing.T, username string) string {
	t.Helper()
	require.NoError(t, s.repos.Users.Create(context.Background(), &domain.User{Username: username, FavoriteGenre: "refactoring"}))

	rec, resp := s.query(t, `mutation($u: String!) { login(username: $u, password: "secret") { value } }`, map[string]any{"u": username}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, resp.Errors)

	var login struct {
		Value string `json:"value"`
	}
	require.NoError(t, json.Unmarshal(resp.Data["login"], &login))
	return login.Value
}

func TestHealth(t *testing.T) {
	s := newServer(t, nil, nil)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newServer(t, nil, nil)
	rec := s.do(t, http.MethodGet, "/health", "", map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	s := newServer(t, nil, nil)
	rec := s.do(t, http.MethodOptions, "/graphql", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t, nil, nil)
	rec := s.do(t, http.MethodGet, "/graphiql", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"errors":[{"message":"no route for GET /graphiql","extensions":{"code":"NOT_FOUND"}}]}`, rec.Body.String())
}

func TestGraphQLGetNotAllowed(t *testing.T) {
	s := newServer(t, nil, nil)
	rec := s.do(t, http.MethodGet, "/graphql", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	s := newServer(t, nil, nil)
	rec := s.do(t, http.MethodPost, "/graphql", `{"query":`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "BAD_REQUEST", resp.Errors[0].Extensions["code"])
}

func TestQueryAnonymous(t *testing.T) {
	s := newServer(t, nil, nil)
	rec, resp := s.query(t, `{ bookCount authorCount me { username } }`, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `0`, string(resp.Data["bookCount"]))
	assert.JSONEq(t, `null`, string(resp.Data["me"]))
}

func TestNonBearerHeaderIsAnonymous(t *testing.T) {
	s := newServer(t, nil, nil)
	body := `{"query":"{ me { username } }"}`
	for _, header := range []string{"Basic abc", "bearer abc", "Token abc"} {
		rec := s.do(t, http.MethodPost, "/graphql", body, map[string]string{"Authorization": header})
		assert.Equal(t, http.StatusOK, rec.Code, header)
		assert.JSONEq(t, `{"data":{"me":null}}`, rec.Body.String(), header)
	}
}

func TestInvalidTokenIsUnauthorized(t *testing.T) {
	s := newServer(t, nil, nil)
	rec := s.do(t, http.MethodPost, "/graphql", `{"query":"{ bookCount }"}`, map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"errors":[{"message":"invalid token","extensions":{"code":"UNAUTHENTICATED"}}]}`, rec.Body.String())
}

func TestExpiredTokenIsUnauthorized(t *testing.T) {
	s := newServer(t, nil, nil)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Username: "alice",
		UserID:   "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/graphql", `{"query":"{ bookCount }"}`, map[string]string{"Authorization": "Bearer " + expired})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token expired")
}

func TestTokenForUnknownUserIsAnonymous(t *testing.T) {
	s := newServer(t, nil, nil)
	token, err := s.tokens.Issue(&domain.User{ID: "gone", Username: "ghost"})
	require.NoError(t, err)

	rec, resp := s.query(t, `{ me { username } }`, nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `null`, string(resp.Data["me"]))
}

func TestLoginThenAddBook(t *testing.T) {
	s := newServer(t, nil, nil)
	token := s.login(t, "alice")

	_, resp := s.query(t, `{ me { username favoriteGenre } }`, nil, token)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"username":"alice","favoriteGenre":"refactoring"}`, string(resp.Data["me"]))

	const addBook = `mutation { addBook(title: "Clean Code", author: "Robert Martin", published: 2008, genres: ["refactoring"]) { title author { name bookCount } } }`

	_, resp = s.query(t, addBook, nil, "")
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "not authenticated", resp.Errors[0].Message)

	rec, resp := s.query(t, addBook, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"title":"Clean Code","author":{"name":"Robert Martin","bookCount":1}}`, string(resp.Data["addBook"]))

	_, resp = s.query(t, `{ recommendedBooks { title } }`, nil, token)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `[{"title":"Clean Code"}]`, string(resp.Data["recommendedBooks"]))
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(0.001, 2, 0)
	defer limiter.Stop()
	s := newServer(t, limiter, nil)

	body := `{"query":"{ bookCount }"}`
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/graphql", body, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/graphql", body, nil).Code)

	rec := s.do(t, http.MethodPost, "/graphql", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "", nil).Code)
}

func postFrom(s *server, remoteAddr string, headers map[string]string) int {
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(`{"query":"{ bookCount }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitIgnoresForwardedHeaders(t *testing.T) {
	limiter := ratelimit.New(0.001, 1, 0)
	defer limiter.Stop()
	s := newServer(t, limiter, nil)

	limited := 0
	for i := range 20 {
		code := postFrom(s, "203.0.113.9:4000", map[string]string{
			"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i),
			"X-Real-IP":       fmt.Sprintf("10.0.1.%d", i),
		})
		if code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 19, limited)
	assert.Equal(t, 1, limiter.Len())
}

func TestRateLimitTrustedProxy(t *testing.T) {
	limiter := ratelimit.New(0.001, 1, 0)
	defer limiter.Stop()
	opts := defaultOptions()
	opts.TrustedProxies = []string{"192.0.2.0/24"}
	s := newServerWithOptions(t, limiter, nil, opts)

	assert.Equal(t, http.StatusOK, postFrom(s, "192.0.2.10:4000", map[string]string{"X-Forwarded-For": "198.51.100.1"}))
	assert.Equal(t, http.StatusOK, postFrom(s, "192.0.2.10:4000", map[string]string{"X-Forwarded-For": "198.51.100.2"}))
	assert.Equal(t, http.StatusTooManyRequests, postFrom(s, "192.0.2.11:4000", map[string]string{"X-Forwarded-For": "198.51.100.1"}))
}

func TestRateLimitPlatformHeader(t *testing.T) {
	limiter := ratelimit.New(0.001, 1, 0)
	defer limiter.Stop()
	opts := defaultOptions()
	opts.ClientIPHeader = "X-Source-Ip"
	s := newServerWithOptions(t, limiter, nil, opts)

	assert.Equal(t, http.StatusOK, postFrom(s, "", map[string]string{"X-Source-Ip": "198.51.100.1"}))
	assert.Equal(t, http.StatusOK, postFrom(s, "", map[string]string{"X-Source-Ip": "198.51.100.2"}))
	assert.Equal(t, http.StatusTooManyRequests, postFrom(s, "", map[string]string{"X-Source-Ip": "198.51.100.1"}))
}

type fakeStorage struct {
	storage.Service
	objects []storage.ObjectInfo
}

func (f *fakeStorage) ListObjects(context.Context, string, string) ([]storage.ObjectInfo, error) {
	return f.objects, nil
}

func TestListBackups(t *testing.T) {
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStorage{objects: []storage.ObjectInfo{{Key: "library-backups/a.json", Size: 42, LastModified: &modified}}}

	s := newServer(t, nil, store)
	rec := s.do(t, http.MethodGet, "/api/backups", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := s.login(t, "alice")
	rec = s.do(t, http.MethodGet, "/api/backups", "", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"key":"library-backups/a.json","size":42,"last_modified":"2024-05-01T12:00:00Z"}]`, rec.Body.String())
}

func TestListBackupsWithoutStorage(t *testing.T) {
	s := newServer(t, nil, nil)
	token := s.login(t, "alice")
	rec := s.do(t, http.MethodGet, "/api/backups", "", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
