// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"crypto/sha256"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"golang.org/x/crypto/acme/autocert"
)

// TLSMode is the way the API is served.
type TLSMode string

const (
	TLSModeOff    TLSMode = "off"
	TLSModeManual TLSMode = "manual"
	TLSModeACME   TLSMode = "acme"
)

// TLSResult contains the resolved TLS configuration.
type TLSResult struct {
	TLSConfig   *tls.Config
	HTTPHandler http.Handler // ACME challenge handler and HTTPS redirect, ACME only
	Mode        TLSMode
}

// SetupTLS resolves the configured TLS mode.
func SetupTLS(cfg *config.Config) (*TLSResult, error) {
	switch mode := TLSMode(strings.ToLower(cfg.TLS.Mode)); mode {
	case TLSModeOff, "":
		if !config.IsLocalhost(cfg.Server.Host) {
			slog.Warn("serving plain HTTP on a public host; put a TLS terminating proxy in front",
				"host", cfg.Server.Host)
		}
		return &TLSResult{Mode: TLSModeOff}, nil
	case TLSModeManual:
		return setupManual(cfg)
	case TLSModeACME:
		if err := validateACME(cfg); err != nil {
			return nil, err
		}
		return setupACME(cfg)
	default:
		return nil, fmt.Errorf("unknown TLS mode: %s", mode)
	}
}

func validateACME(cfg *config.Config) error {
	host := cfg.Server.Host
	if config.IsLocalhost(host) || net.ParseIP(host) != nil {
		return fmt.Errorf("ACME mode requires a public domain name, got %q", host)
	}
	if cfg.TLS.Email == "" {
		return errors.New("ACME mode requires TLS_EMAIL to be set")
	}
	if cfg.Server.Port != 443 {
		slog.Warn("ACME mode serves on port 443, configured port is ignored",
			"configured_port", cfg.Server.Port)
	}
	return nil
}

func setupACME(cfg *config.Config) (*TLSResult, error) {
	certDir := filepath.Join(cfg.TLS.CertDir, "acme")
	if err := os.MkdirAll(certDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create ACME cert directory: %w", err)
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Email:      cfg.TLS.Email,
		Cache:      autocert.DirCache(certDir),
		HostPolicy: autocert.HostWhitelist(cfg.Server.Host),
	}
	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	slog.Info("TLS mode: acme", "host", cfg.Server.Host, "email", cfg.TLS.Email)
	return &TLSResult{
		Mode:        TLSModeACME,
		TLSConfig:   tlsConfig,
		HTTPHandler: manager.HTTPHandler(nil),
	}, nil
}

func setupManual(cfg *config.Config) (*TLSResult, error) {
	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		return nil, errors.New("manual TLS mode requires both cert-file and key-file")
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	slog.Info("TLS mode: manual",
		"cert", cfg.TLS.CertFile,
		"fingerprint", fingerprint(&cert),
	)
	return &TLSResult{
		Mode: TLSModeManual,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
	}, nil
}

// fingerprint returns the SHA-256 fingerprint of the leaf certificate.
func fingerprint(cert *tls.Certificate) string {
	if len(cert.Certificate) == 0 {
		return ""
	}
	sum := sha256.Sum256(cert.Certificate[0])
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}
