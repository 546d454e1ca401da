// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"fmt"
	"log"
	"time"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/model"
)

// =============================================================================
// STORED FORMS
// =============================================================================

// storedConversation is the persisted shape of the active conversation.
type storedConversation struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []storedMessage `json:"messages"`
}

type storedMessage struct {
	ID          string                  `json:"id"`
	Role        string                  `json:"role"`
	Content     string                  `json:"content"`
	Timestamp   time.Time               `json:"timestamp"`
	Attachments []model.AttachmentRef   `json:"attachments,omitempty"`
	Sources     []model.SourceDocument  `json:"sources,omitempty"`
	Thinking    *model.ThinkingMetadata `json:"thinking,omitempty"`
	ToolUsage   []model.ToolUsageEvent  `json:"tool_usage,omitempty"`
}

func toStored(conv *model.Conversation) storedConversation {
	sc := storedConversation{
		ID:        conv.ID,
		Name:      conv.Name,
		UpdatedAt: conv.UpdatedAt,
	}
	for _, msg := range conv.Messages {
		sc.Messages = append(sc.Messages, storedMessage{
			ID:          msg.ID,
			Role:        string(msg.Role),
			Content:     msg.GetDisplayContent(),
			Timestamp:   msg.Timestamp,
			Attachments: msg.Attachments,
			Sources:     msg.SourceDocuments,
			Thinking:    msg.Thinking,
			ToolUsage:   msg.ToolUsage,
		})
	}
	return sc
}

func fromStored(sc storedConversation) *model.Conversation {
	conv := &model.Conversation{
		ID:        sc.ID,
		Name:      sc.Name,
		UpdatedAt: sc.UpdatedAt,
	}
	for _, sm := range sc.Messages {
		msg := &model.Message{
			ID:              sm.ID,
			Role:            model.Role(sm.Role),
			Content:         sm.Content,
			Timestamp:       sm.Timestamp,
			Attachments:     sm.Attachments,
			SourceDocuments: sm.Sources,
			Thinking:        sm.Thinking,
			ToolUsage:       sm.ToolUsage,
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore persists the single active conversation under a fixed
// cache key. Every mutation is written through immediately so a restart
// restores the transcript.
type ConversationStore struct {
	cache  *Cache
	active *model.Conversation
}

// NewConversationStore seeds the store from the cache; a missing or corrupt
// record yields a fresh empty conversation.
func NewConversationStore(cache *Cache) *ConversationStore {
	s := &ConversationStore{cache: cache}

	var sc storedConversation
	err := cache.Get(KeyActiveConversation, &sc)
	switch {
	case err == nil:
		s.active = fromStored(sc)
	case err == ErrNotFound:
		s.active = &model.Conversation{}
	default:
		log.Printf("store: discarding unreadable conversation cache: %v", err)
		s.active = &model.Conversation{}
	}
	return s
}

// Active returns the in-memory active conversation. Callers mutate it via
// the model API and then call Persist.
func (s *ConversationStore) Active() *model.Conversation {
	return s.active
}

// Persist writes the active conversation through to the cache.
func (s *ConversationStore) Persist() error {
	if err := s.cache.Put(KeyActiveConversation, toStored(s.active)); err != nil {
		return fmt.Errorf("persisting conversation: %w", err)
	}
	return nil
}

// AdoptID records the backend-assigned conversation id. An already-set id
// is never overwritten.
func (s *ConversationStore) AdoptID(id string) {
	if id == "" || s.active.ID != "" {
		return
	}
	s.active.ID = id
	if err := s.Persist(); err != nil {
		log.Printf("store: %v", err)
	}
}

// Reset replaces the active conversation with a fresh empty one, both in
// memory and on disk.
func (s *ConversationStore) Reset() error {
	s.active.Reset()
	if err := s.cache.Delete(KeyActiveConversation); err != nil {
		return fmt.Errorf("resetting conversation: %w", err)
	}
	return nil
}
