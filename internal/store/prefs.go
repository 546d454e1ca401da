// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"fmt"
	"log"
)

// Preferences holds per-user settings that survive restarts but are not
// deployment configuration.
type Preferences struct {
	// PromptTemplate is the user's prompt override. Empty means use the
	// deployment default. Only honored when prompt editing is enabled.
	PromptTemplate string `json:"prompt_template,omitempty"`
	// SourcesExpanded remembers whether citation panels start expanded.
	SourcesExpanded bool `json:"sources_expanded"`
	// ThinkingExpanded remembers whether reasoning panels start expanded.
	ThinkingExpanded bool `json:"thinking_expanded"`
}

// PreferenceStore persists Preferences under a fixed cache key.
type PreferenceStore struct {
	cache *Cache
	prefs Preferences
}

// NewPreferenceStore seeds preferences from the cache, defaulting on any
// missing or unreadable record.
func NewPreferenceStore(cache *Cache) *PreferenceStore {
	s := &PreferenceStore{cache: cache}
	if err := cache.Get(KeyUserPreferences, &s.prefs); err != nil && err != ErrNotFound {
		log.Printf("store: discarding unreadable preferences: %v", err)
		s.prefs = Preferences{}
	}
	return s
}

// Get returns the current preferences.
func (s *PreferenceStore) Get() Preferences {
	return s.prefs
}

// Update applies fn to the preferences and writes them through.
func (s *PreferenceStore) Update(fn func(*Preferences)) error {
	fn(&s.prefs)
	if err := s.cache.Put(KeyUserPreferences, s.prefs); err != nil {
		return fmt.Errorf("persisting preferences: %w", err)
	}
	return nil
}
