// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session carries the refresh token in a signed (and optionally
// encrypted) HTTP-only cookie for browser clients.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"github.com/gorilla/securecookie"
)

// DefaultCookieName is used when the config leaves the name empty.
const DefaultCookieName = "_refresh"

// Data is the cookie payload.
type Data struct {
	RefreshToken string
	ExpiresAt    time.Time
}

// Manager encodes and decodes the refresh cookie.
type Manager struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge time.Duration
	secure bool
}

// NewManager creates a cookie manager. The keys are read as hex; an empty hash
// key is replaced by a random one (development only).
func NewManager(cfg *config.SessionConfig, maxAge time.Duration, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		hashKey = securecookie.GenerateRandomKey(32)
		if hashKey == nil {
			return nil, errors.New("failed to generate session hash key")
		}
		slog.Warn("session hash key not configured, using a random one; refresh cookies will not survive a restart")
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(maxAge.Seconds()))

	return &Manager{
		codec:  codec,
		name:   name,
		maxAge: maxAge,
		secure: secure,
	}, nil
}

func decodeKey(value, kind string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key (must be hex-encoded): %w", kind, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("session %s key must be 32 bytes, got %d", kind, len(key))
	}
	return key, nil
}

// GenerateKey returns a random hex-encoded 32-byte key for the config file.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// Name returns the cookie name.
func (m *Manager) Name() string {
	return m.name
}

// Create returns a cookie carrying refreshToken.
func (m *Manager) Create(refreshToken string) (*http.Cookie, error) {
	data := Data{
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(m.maxAge),
	}

	encoded, err := m.codec.Encode(m.name, data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh cookie: %w", err)
	}

	return m.cookie(encoded, int(m.maxAge.Seconds())), nil
}

// Read returns the refresh token of the request's cookie. A missing, invalid
// or expired cookie yields false.
func (m *Manager) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		return "", false
	}

	var data Data
	if err := m.codec.Decode(m.name, cookie.Value, &data); err != nil {
		return "", false
	}
	if time.Now().After(data.ExpiresAt) {
		return "", false
	}
	return data.RefreshToken, true
}

// Clear returns a cookie that deletes the refresh cookie.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}
}
