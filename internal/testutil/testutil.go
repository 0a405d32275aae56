// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"codeberg.org/oliverandrich/go-auth-service/internal/database"
	"codeberg.org/oliverandrich/go-auth-service/internal/models"
	"codeberg.org/oliverandrich/go-auth-service/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the password of users created by NewTestUser.
const TestPassword = "Secret1!"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestUser creates a user with TestPassword in the database.
func NewTestUser(t *testing.T, repo *repository.Repository, email string, verified bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Email:        email,
		FullName:     "Test User",
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Verified:     verified,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// Mail is a message captured by Mailbox.
type Mail struct {
	Kind   string
	To     string
	Secret string
}

// Mailbox records outgoing mails instead of sending them.
type Mailbox struct {
	mu    sync.Mutex
	mails []Mail
	Err   error
}

func (m *Mailbox) record(kind, to, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.mails = append(m.mails, Mail{Kind: kind, To: to, Secret: secret})
	return nil
}

// SendVerificationCode records a verification mail.
func (m *Mailbox) SendVerificationCode(_ context.Context, to, code string) error {
	return m.record("verify", to, code)
}

// SendResetCode records a password reset mail.
func (m *Mailbox) SendResetCode(_ context.Context, to, code string) error {
	return m.record("reset", to, code)
}

// SendNewPassword records a generated-password mail.
func (m *Mailbox) SendNewPassword(_ context.Context, to, password string) error {
	return m.record("password", to, password)
}

// Last returns the most recent mail of the given kind sent to addr.
func (m *Mailbox) Last(kind, addr string) (Mail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.mails) - 1; i >= 0; i-- {
		if m.mails[i].Kind == kind && m.mails[i].To == addr {
			return m.mails[i], true
		}
	}
	return Mail{}, false
}

// Count returns the number of recorded mails.
func (m *Mailbox) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mails)
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}
