// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"bytes"
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type recordingTransport struct {
	sent []message
}

func (r *recordingTransport) send(_ context.Context, msg message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func TestSendVerificationCode_Localized(t *testing.T) {
	rec := &recordingTransport{}
	svc := &Service{transport: rec, verifyTTL: 15 * time.Minute, resetTTL: 10 * time.Minute}

	ctx := i18n.WithLocale(context.Background(), language.Uzbek)
	require.NoError(t, svc.SendVerificationCode(ctx, "a@example.com", "abcd-efgh"))

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "a@example.com", rec.sent[0].to)
	assert.Equal(t, "Email manzilingizni tasdiqlang", rec.sent[0].subject)
	assert.Contains(t, rec.sent[0].body, "abcd-efgh")
	assert.Contains(t, rec.sent[0].body, "15 daqiqa")
}

func TestSendResetCode(t *testing.T) {
	rec := &recordingTransport{}
	svc := &Service{transport: rec, resetTTL: 10 * time.Minute}

	require.NoError(t, svc.SendResetCode(context.Background(), "a@example.com", "wxyz-2345"))

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "Your password reset code", rec.sent[0].subject)
	assert.Contains(t, rec.sent[0].body, "wxyz-2345")
	assert.Contains(t, rec.sent[0].body, "10 minutes")
}

func TestSendNewPassword(t *testing.T) {
	rec := &recordingTransport{}
	svc := &Service{transport: rec}

	require.NoError(t, svc.SendNewPassword(context.Background(), "a@example.com", "Xy7!secretpass"))

	require.Len(t, rec.sent, 1)
	assert.Contains(t, rec.sent[0].body, "Xy7!secretpass")
}

func TestCompose(t *testing.T) {
	tr, err := newSMTPTransport(&config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     465,
		From:     "noreply@example.com",
		FromName: "Auth",
		TLS:      true,
	})
	require.NoError(t, err)

	m, err := tr.compose(message{to: "a@example.com", subject: "Hello", body: "code 1234"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "Subject: Hello")
	assert.Contains(t, raw, "a@example.com")
	assert.Contains(t, raw, "noreply@example.com")
	assert.Contains(t, raw, "code 1234")
}

func TestCompose_InvalidRecipient(t *testing.T) {
	tr, err := newSMTPTransport(&config.SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"})
	require.NoError(t, err)

	_, err = tr.compose(message{to: "not an address", subject: "x", body: "y"})
	assert.Error(t, err)
}

func TestMinutes(t *testing.T) {
	assert.Equal(t, 15, minutes(15*time.Minute))
	assert.Equal(t, 1, minutes(61*time.Second))
	assert.Equal(t, 0, minutes(0))
}
