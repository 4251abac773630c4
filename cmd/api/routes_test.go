package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pg-life/internal/account"
	"github.com/yourusername/pg-life/internal/auth"
	"github.com/yourusername/pg-life/internal/config"
	"github.com/yourusername/pg-life/internal/logging"
)

func testConfig(storeURL string) *config.Config {
	return &config.Config{
		Port:                "0",
		GinMode:             gin.TestMode,
		StoreRedisURL:       storeURL,
		JWTSecret:           "test-secret",
		JWTExpiration:       time.Hour,
		CookieMaxAge:        time.Hour,
		CookieSecure:        true,
		VerificationBaseURL: "http://localhost:3000/api/v1/auth/verify",
		VerificationTTL:     time.Hour,
		LogLevel:            "error",
	}
}

func newTestApp(t *testing.T, mutate func(*config.Config)) (*app, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)

	cfg := testConfig("redis://" + mr.Addr() + "/0")
	if mutate != nil {
		mutate(cfg)
	}
	a, err := newApp(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a, newRouter(a)
}

func request(r http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRootAndHealth(t *testing.T) {
	_, r := newTestApp(t, nil)

	w := request(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Welcome to PG LIFE", w.Body.String())

	w = request(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["store"])
}

func TestUnknownRoute(t *testing.T) {
	_, r := newTestApp(t, nil)

	w := request(r, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Route Not Found","status":404}`, w.Body.String())
}

func TestStoreDownAtStartupKeepsServing(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	a, err := newApp(context.Background(), testConfig("redis://"+addr+"/0"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(a.close)
	r := newRouter(a)

	w := request(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"unavailable"`)

	w = request(r, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "a@b.com", "password": "Abcdef12"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, r := newTestApp(t, nil)

	request(r, http.MethodGet, "/", nil)
	w := request(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pglife_http_requests_total")
}

func TestCORSReflectsOrigin(t *testing.T) {
	_, r := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestEndToEndFlow(t *testing.T) {
	_, r := newTestApp(t, func(cfg *config.Config) { cfg.TokenRevocation = true })

	w := request(r, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name":        "Ada",
		"email":       "a@b.com",
		"password":    "Abcdef12",
		"phoneNumber": "+1234567890",
		"collegeName": "MIT",
		"gender":      "female",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := cookieNamed(w, auth.DefaultCookieName)
	require.NotNil(t, token)

	w = request(r, http.MethodGet, "/api/v1/auth/check", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"a@b.com"`)

	w = request(r, http.MethodPost, "/api/v1/property/register-property", map[string]any{
		"propertyTitle": "Sunrise PG",
		"description":   "Twin sharing",
		"price":         8500,
		"location":      "Delhi",
		"images":        []string{"1.jpg"},
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = request(r, http.MethodGet, "/api/v1/property/get-properties", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sunrise PG")

	w = request(r, http.MethodGet, "/api/v1/admin/accounts", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = request(r, http.MethodGet, "/api/v1/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, cookieNamed(w, auth.DefaultCookieName))

	w = request(r, http.MethodGet, "/api/v1/auth/check", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(r, http.MethodGet, "/api/v1/auth/check", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCSRFGuardsPropertyMutations(t *testing.T) {
	_, r := newTestApp(t, func(cfg *config.Config) {
		cfg.CSRFProtection = true
		cfg.SessionSecret = "session-secret"
	})

	w := request(r, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name":        "Ada",
		"email":       "a@b.com",
		"password":    "Abcdef12",
		"phoneNumber": "+1234567890",
		"collegeName": "MIT",
		"gender":      "female",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := cookieNamed(w, auth.DefaultCookieName)
	session := cookieNamed(w, auth.CSRFSessionName)
	csrf := w.Header().Get(auth.CSRFHeader)
	require.NotNil(t, session)
	require.NotEmpty(t, csrf)

	body := `{"propertyTitle":"Sunrise PG","description":"Twin","price":1,"location":"Delhi","images":["1.jpg"]}`

	w = request(r, http.MethodGet, "/api/v1/property/get-properties", nil, token, session)
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/property/register-property", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(token)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/property/register-property", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.CSRFHeader, csrf)
	req.AddCookie(token)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	for _, sub := range []string{"serve", "create-admin"} {
		assert.Contains(t, buf.String(), sub)
	}
}

func TestCreateAdminCommand(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("STORE_REDIS_URL", "redis://"+mr.Addr()+"/0")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRATION", "1h")
	t.Setenv("COOKIE_MAX_AGE", "")
	t.Setenv("GIN_MODE", gin.TestMode)
	t.Setenv("CSRF_PROTECTION", "false")
	t.Setenv("QUEUE_REDIS_URL", "")

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"create-admin",
		"--name", "Root",
		"--email", "Root@Example.com",
		"--password", "Admin1234",
		"--phone", "+911234567890",
		"--college", "Head Office",
		"--gender", "male",
	})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "created admin root@example.com")

	a, err := newApp(context.Background(), testConfig("redis://"+mr.Addr()+"/0"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(a.close)

	acc, err := a.accounts.GetByEmail(context.Background(), "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.RoleAdmin, acc.Role)
}
