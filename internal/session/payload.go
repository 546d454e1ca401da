// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session is the core of the chat client: it encodes outbound
// messages for the backend's route actions, interprets inbound streaming
// frames into conversation mutations, and owns the engine that ties the
// transport, store, attachments, and feedback together.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/auth"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/model"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/restapi"
)

// Route actions understood by the backend.
const (
	actionAgentRoute = "agent-route"
	actionTextRoute  = "text-route"
)

// ErrNoUseCaseConfig signals a deployment defect: encoding was attempted
// before the use-case configuration was known. Logged, never user-facing.
var ErrNoUseCaseConfig = errors.New("session: use case configuration is missing")

// ErrUnknownUseCaseType signals an unrecognized deployment type.
var ErrUnknownUseCaseType = errors.New("session: unrecognized use case type")

// Encoder builds wire payloads for outbound chat messages. Pure except for
// fetching a fresh auth token where the route requires one.
type Encoder struct {
	cfg    *restapi.UseCaseConfig
	tokens auth.TokenProvider
}

// NewEncoder creates a payload encoder for the deployment.
func NewEncoder(cfg *restapi.UseCaseConfig, tokens auth.TokenProvider) *Encoder {
	return &Encoder{cfg: cfg, tokens: tokens}
}

// EncodeRequest carries everything one outbound message needs.
type EncodeRequest struct {
	Message        string
	ConversationID string
	// PromptOverride is the user's prompt template. Sent only on the
	// text route and only when the deployment allows prompt editing.
	PromptOverride string
	// MessageID and Attachments are carried on multimodal-capable
	// deployment types only.
	MessageID   string
	Attachments []model.AttachmentRef
}

// Encode serializes the request per the deployment's use-case type. Keys
// that do not apply to a route are absent from the payload, not null.
func (e *Encoder) Encode(ctx context.Context, req EncodeRequest) ([]byte, error) {
	if e.cfg == nil || e.cfg.UseCaseType == "" {
		return nil, ErrNoUseCaseConfig
	}

	payload := map[string]any{
		"conversationId": req.ConversationID,
	}

	switch e.cfg.UseCaseType {
	case restapi.UseCaseTypeAgent:
		payload["action"] = actionAgentRoute
		payload["inputText"] = req.Message

	case restapi.UseCaseTypeText:
		payload["action"] = actionTextRoute
		payload["question"] = req.Message
		if e.cfg.UserPromptEditingEnabled && req.PromptOverride != "" {
			payload["promptTemplate"] = req.PromptOverride
		}
		token, err := e.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("encoding text route: %w", err)
		}
		payload["authToken"] = token

	case restapi.UseCaseTypeAgentBuilder, restapi.UseCaseTypeWorkflow:
		payload["action"] = actionAgentRoute
		payload["inputText"] = req.Message
		payload["useCaseId"] = e.cfg.UseCaseID
		payload["messageId"] = req.MessageID
		if len(req.Attachments) > 0 {
			payload["files"] = req.Attachments
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownUseCaseType, e.cfg.UseCaseType)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling payload: %w", err)
	}
	return data, nil
}
