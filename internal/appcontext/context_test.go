// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package appcontext_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/go-auth-service/internal/appcontext"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/token"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginBody struct {
	Email string
}

func newEchoContext() echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFrom_WrapsPlainContext(t *testing.T) {
	c := newEchoContext()

	cc := appcontext.From(c)

	require.NotNil(t, cc)
	assert.Same(t, c, cc.Context)
	assert.False(t, cc.IsAuthenticated())
}

func TestFrom_ReturnsExisting(t *testing.T) {
	cc := &appcontext.Context{Context: newEchoContext()}

	assert.Same(t, cc, appcontext.From(cc))
}

func TestIsAuthenticated(t *testing.T) {
	cc := &appcontext.Context{Claims: &token.Claims{SessionID: "s1"}}

	assert.True(t, cc.IsAuthenticated())
}

func TestPayload(t *testing.T) {
	cc := appcontext.From(newEchoContext())

	_, ok := appcontext.Payload[loginBody](cc)
	assert.False(t, ok)

	cc.Payload = &loginBody{Email: "a@x.com"}
	body, ok := appcontext.Payload[loginBody](cc)
	require.True(t, ok)
	assert.Equal(t, "a@x.com", body.Email)

	_, ok = appcontext.Payload[struct{ Other int }](cc)
	assert.False(t, ok)
}

func TestMiddleware(t *testing.T) {
	var seen echo.Context
	h := appcontext.Middleware()(func(c echo.Context) error {
		seen = c
		return nil
	})

	require.NoError(t, h(newEchoContext()))

	_, ok := seen.(*appcontext.Context)
	assert.True(t, ok)
}
