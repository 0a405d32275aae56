// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
	"codeberg.org/oliverandrich/go-auth-service/internal/models"
	"codeberg.org/oliverandrich/go-auth-service/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "localhost",
			Port:           8080,
			BaseURL:        "http://localhost:8080",
			MaxBodySize:    1,
			RequestTimeout: 5 * time.Second,
		},
		TLS: config.TLSConfig{Mode: "off"},
		Auth: config.AuthConfig{
			TokenSecret:      testSecret,
			TokenIssuer:      "test",
			AccessTTL:        15 * time.Minute,
			RefreshTTL:       time.Hour,
			CodeMaxAttempts:  5,
			BcryptCost:       bcrypt.MinCost,
			OperationTimeout: 5 * time.Second,
		},
	}
}

type testServer struct {
	e    *echo.Echo
	app  *App
	mail *testutil.Mailbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require.NoError(t, i18n.Init())
	db, _ := testutil.NewTestDB(t)

	mailbox := &testutil.Mailbox{}
	cfg := testConfig()
	app, err := NewApp(cfg, db, mailbox)
	require.NoError(t, err)

	return &testServer{e: NewEcho(cfg, app), app: app, mail: mailbox}
}

func (s *testServer) post(t *testing.T, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_Table(t *testing.T) {
	s := newTestServer(t)

	want := map[string]bool{
		"POST /register":            true,
		"POST /verify":              true,
		"POST /verify/resend":       true,
		"POST /login":               true,
		"POST /logout":              true,
		"POST /refresh":             true,
		"POST /forgotPsw":           true,
		"POST /password/reset-code": true,
		"POST /password/reset":      true,
		"GET /health":               true,
		"GET /metrics":              true,
	}

	routes := Routes(s.app)
	assert.Len(t, routes, len(want))
	for _, r := range routes {
		key := r.Method + " " + r.Path
		assert.True(t, want[key], "unexpected route %s", key)
		assert.NotNil(t, r.Handler, key)
	}

	for _, r := range routes {
		if r.Path == "/logout" {
			assert.Len(t, r.Middleware, 1)
		}
	}
}

func TestScenario(t *testing.T) {
	s := newTestServer(t)

	rec := s.post(t, "/register", `{"fullName":"A","email":"a@x.com","password":"Secret1!","role":"user"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = s.post(t, "/verify", `{"email":"a@x.com","code":"zzzz-zzzz"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mail, ok := s.mail.Last("verify", "a@x.com")
	require.True(t, ok)
	rec = s.post(t, "/verify", `{"email":"a@x.com","code":"`+mail.Secret+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.post(t, "/login", `{"email":"a@x.com","password":"Secret1!"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		Tokens struct {
			AccessToken string `json:"accessToken"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Tokens.AccessToken)

	rec = s.post(t, "/logout", "", login.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.post(t, "/logout", "", login.Tokens.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLocalizedErrors(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/forgotPsw", strings.NewReader(`{"email":"ghost@x.com"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Accept-Language", "uz")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "uz", rec.Header().Get("Content-Language"))
	assert.NotContains(t, rec.Body.String(), "User not found.")
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_request_duration_seconds")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t)

	big := `{"email":"` + strings.Repeat("a", 2<<20) + `@x.com"}`
	rec := s.post(t, "/forgotPsw", big, "")

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPurge(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, s.app.Repo, "j@x.com", true)
	_, err := s.app.Codes.Issue(ctx, user.ID, models.PurposeVerify)
	require.NoError(t, err)
	_, err = s.app.Codes.Issue(ctx, user.ID, models.PurposeVerify)
	require.NoError(t, err)

	purge(ctx, s.app)

	// The retired first code is gone, the live one stays.
	_, err = s.app.Repo.GetActiveVerificationCode(ctx, user.ID, models.PurposeVerify)
	assert.NoError(t, err)
	n, err := s.app.Codes.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunJanitor_StopsOnCancel(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		runJanitor(ctx, s.app, time.Millisecond)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
