// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth defines the access-token capability consumed by the transport
// and the payload encoder.
//
// Token acquisition itself is an external collaborator: the client only
// needs "get the current access token". Providers here cover the common
// local setups (static token from config, token mirrored to a file by an
// external identity agent).
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrNoToken indicates the provider could not produce an access token.
// The transport maps this to an auth-tagged connection error without
// attempting the network call.
var ErrNoToken = errors.New("auth: no access token available")

// TokenProvider supplies the current access token. Token returns a fresh
// value on every call; the transport invokes it on every (re)connection
// attempt so a renewed token is embedded in the connection URL.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// =============================================================================
// STATIC PROVIDER
// =============================================================================

// StaticProvider returns a fixed token. Used for development and tests.
type StaticProvider struct {
	Value string
}

// Token returns the fixed token.
func (p StaticProvider) Token(ctx context.Context) (string, error) {
	if p.Value == "" {
		return "", ErrNoToken
	}
	return p.Value, nil
}

// =============================================================================
// FILE PROVIDER
// =============================================================================

// FileProvider reads the token from a file maintained by an external
// identity agent. The file is re-read at most once per Refresh interval so
// a rotated token is picked up on the next connection attempt.
type FileProvider struct {
	Path    string
	Refresh time.Duration

	mu     sync.Mutex
	cached string
	readAt time.Time
}

// NewFileProvider creates a provider for the given token file. A zero
// refresh interval re-reads the file on every call.
func NewFileProvider(path string, refresh time.Duration) *FileProvider {
	return &FileProvider{Path: path, Refresh: refresh}
}

// Token returns the current token from the file, trimmed of whitespace.
func (p *FileProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" && p.Refresh > 0 && time.Since(p.readAt) < p.Refresh {
		return p.cached, nil
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoToken, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}

	p.cached = token
	p.readAt = time.Now()
	return token, nil
}

// =============================================================================
// ENV PROVIDER
// =============================================================================

// EnvProvider reads the token from an environment variable on every call.
type EnvProvider struct {
	Var string
}

// Token returns the token from the environment.
func (p EnvProvider) Token(ctx context.Context) (string, error) {
	token := strings.TrimSpace(os.Getenv(p.Var))
	if token == "" {
		return "", fmt.Errorf("%w: environment variable %s is empty", ErrNoToken, p.Var)
	}
	return token, nil
}
