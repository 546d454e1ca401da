// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides local persistence for the chat client: the active
// conversation transcript and user preferences, each kept under a fixed key
// in a small JSON file cache.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/util"
)

// Fixed cache keys. The client keeps exactly one conversation and one
// preferences record.
const (
	KeyActiveConversation = "active-conversation"
	KeyUserPreferences    = "user-preferences"
)

// ErrNotFound is returned when a cache key has no stored value.
var ErrNotFound = errors.New("store: key not found")

// Cache is a file-backed key-value store. Each key maps to one JSON file
// under BaseDir. Writes are atomic. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	baseDir string
}

// NewCache creates a cache rooted at baseDir, creating it if needed.
func NewCache(baseDir string) (*Cache, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{baseDir: baseDir}, nil
}

func (c *Cache) pathFor(key string) string {
	// Keys are fixed identifiers, but sanitize anyway.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(c.baseDir, safe+".json")
}

// Get unmarshals the stored value for key into out.
func (c *Cache) Get(key string, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("reading cache key %q: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding cache key %q: %w", key, err)
	}
	return nil
}

// Put marshals value and writes it atomically under key.
func (c *Cache) Put(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache key %q: %w", key, err)
	}
	if err := util.AtomicWriteFile(c.pathFor(key), data, 0600); err != nil {
		return fmt.Errorf("writing cache key %q: %w", key, err)
	}
	return nil
}

// Delete removes the stored value for key. Missing keys are not an error.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.pathFor(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting cache key %q: %w", key, err)
	}
	return nil
}
