// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/go-auth-service/internal/appcontext"
	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
	"codeberg.org/oliverandrich/go-auth-service/internal/metrics"
	"codeberg.org/oliverandrich/go-auth-service/internal/middleware"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/token"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emailBody struct {
	Email string `json:"email"`
}

func (b *emailBody) Validate() error {
	if b.Email == "" {
		return middleware.FieldRequired("email")
	}
	return nil
}

type stubValidator struct {
	claims *token.Claims
	err    error
	gotTyp string
}

func (s *stubValidator) Validate(_ context.Context, _, typ string) (*token.Claims, error) {
	s.gotTyp = typ
	return s.claims, s.err
}

func newContext(method, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestValidate_StoresPayload(t *testing.T) {
	c, _ := newContext(http.MethodPost, `{"email":"a@x.com"}`)

	var got *emailBody
	h := middleware.Validate[emailBody]()(func(c echo.Context) error {
		var ok bool
		got, ok = appcontext.Payload[emailBody](c)
		require.True(t, ok)
		return nil
	})

	require.NoError(t, h(c))
	assert.Equal(t, "a@x.com", got.Email)
}

func TestValidate_RejectsMissingField(t *testing.T) {
	c, _ := newContext(http.MethodPost, `{}`)

	called := false
	h := middleware.Validate[emailBody]()(func(echo.Context) error {
		called = true
		return nil
	})

	err := h(c)

	var reqErr *middleware.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "error_field_required", reqErr.MessageID)
	assert.Equal(t, "email", reqErr.Data["Field"])
	assert.False(t, called)
}

func TestValidate_RejectsMalformedJSON(t *testing.T) {
	c, _ := newContext(http.MethodPost, `{"email":`)

	h := middleware.Validate[emailBody]()(func(echo.Context) error {
		t.Fatal("handler must not run")
		return nil
	})

	err := h(c)

	var reqErr *middleware.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "error_invalid_request", reqErr.MessageID)
	assert.Error(t, reqErr.Unwrap())
}

func TestRequireToken(t *testing.T) {
	claims := &token.Claims{Type: token.TypeAccess, SessionID: "s1"}

	t.Run("valid token", func(t *testing.T) {
		v := &stubValidator{claims: claims}
		c, _ := newContext(http.MethodPost, "")
		c.Request().Header.Set(echo.HeaderAuthorization, "Bearer abc.def.ghi")

		var cc *appcontext.Context
		h := middleware.RequireToken(v)(func(c echo.Context) error {
			cc = appcontext.From(c)
			return nil
		})

		require.NoError(t, h(c))
		assert.Equal(t, token.TypeAccess, v.gotTyp)
		assert.Same(t, claims, cc.Claims)
		assert.Equal(t, "abc.def.ghi", cc.AccessToken)
	})

	t.Run("missing header", func(t *testing.T) {
		c, _ := newContext(http.MethodPost, "")
		h := middleware.RequireToken(&stubValidator{claims: claims})(func(echo.Context) error { return nil })

		assert.ErrorIs(t, h(c), middleware.ErrMissingToken)
	})

	t.Run("rejected token", func(t *testing.T) {
		c, _ := newContext(http.MethodPost, "")
		c.Request().Header.Set(echo.HeaderAuthorization, "Bearer revoked")
		v := &stubValidator{err: token.ErrTokenRevoked}
		h := middleware.RequireToken(v)(func(echo.Context) error { return nil })

		err := h(c)
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := middleware.BearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	tests := []struct {
		header string
		want   string
	}{
		{"uz-UZ,uz;q=0.9", "uz"},
		{"en-US", "en"},
		{"fr", "en"},
		{"", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "")
			c.Request().Header.Set("Accept-Language", tt.header)

			var locale string
			h := middleware.Locale()(func(c echo.Context) error {
				locale = i18n.GetLocale(c.Request().Context())
				return nil
			})

			require.NoError(t, h(c))
			assert.Equal(t, tt.want, locale)
			assert.Equal(t, tt.want, rec.Header().Get("Content-Language"))
		})
	}
}

func TestMetrics(t *testing.T) {
	e := echo.New()
	e.Use(middleware.Metrics())
	e.GET("/ping", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/broken", func(echo.Context) error {
		return errors.New("boom")
	})

	for _, path := range []string{"/ping", "/broken"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, uint64(1), sampleCount(t, "/ping", "204"))
	assert.Equal(t, uint64(1), sampleCount(t, "/broken", "500"))
}

func sampleCount(t *testing.T, route, status string) uint64 {
	t.Helper()
	obs, err := metrics.HTTPRequestDurationSeconds.GetMetricWithLabelValues(http.MethodGet, route, status)
	require.NoError(t, err)
	var m dto.Metric
	require.NoError(t, obs.(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}
