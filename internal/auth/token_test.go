// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()

	token, err := StaticProvider{Value: "abc"}.Token(ctx)
	if err != nil || token != "abc" {
		t.Errorf("Token() = %q, %v", token, err)
	}

	_, err = StaticProvider{}.Token(ctx)
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("empty provider error = %v, want ErrNoToken", err)
	}
}

func TestFileProvider(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "token")

	p := NewFileProvider(path, 0)
	if _, err := p.Token(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("missing file error = %v, want ErrNoToken", err)
	}

	os.WriteFile(path, []byte("  tok-1\n"), 0600)
	token, err := p.Token(ctx)
	if err != nil || token != "tok-1" {
		t.Errorf("Token() = %q, %v", token, err)
	}

	// Zero refresh re-reads the file, picking up rotation.
	os.WriteFile(path, []byte("tok-2"), 0600)
	token, _ = p.Token(ctx)
	if token != "tok-2" {
		t.Errorf("rotated token = %q, want tok-2", token)
	}
}

func TestFileProviderCaching(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "token")
	os.WriteFile(path, []byte("tok-1"), 0600)

	p := NewFileProvider(path, time.Hour)
	if token, _ := p.Token(ctx); token != "tok-1" {
		t.Fatalf("initial token = %q", token)
	}

	// Within the refresh window the cached value is served.
	os.WriteFile(path, []byte("tok-2"), 0600)
	if token, _ := p.Token(ctx); token != "tok-1" {
		t.Errorf("cached token = %q, want tok-1", token)
	}
}

func TestEnvProvider(t *testing.T) {
	ctx := context.Background()
	t.Setenv("CHAT_TEST_TOKEN", "env-tok")

	token, err := EnvProvider{Var: "CHAT_TEST_TOKEN"}.Token(ctx)
	if err != nil || token != "env-tok" {
		t.Errorf("Token() = %q, %v", token, err)
	}

	t.Setenv("CHAT_TEST_TOKEN", "")
	if _, err := (EnvProvider{Var: "CHAT_TEST_TOKEN"}).Token(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("empty env error = %v, want ErrNoToken", err)
	}
}
