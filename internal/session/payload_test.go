// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/auth"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/model"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/restapi"
)

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	return m
}

func TestEncodeAgentRoute(t *testing.T) {
	enc := NewEncoder(&restapi.UseCaseConfig{UseCaseType: restapi.UseCaseTypeAgent}, auth.StaticProvider{Value: "tok"})

	data, err := enc.Encode(context.Background(), EncodeRequest{
		Message:        "Hello",
		ConversationID: "conv-1",
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got := decode(t, data)
	want := map[string]any{
		"action":         "agent-route",
		"inputText":      "Hello",
		"conversationId": "conv-1",
	}
	if len(got) != len(want) {
		t.Errorf("payload has %d keys, want exactly %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("payload[%q] = %v, want %v", k, got[k], v)
		}
	}
	if _, ok := got["authToken"]; ok {
		t.Error("agent route must not carry authToken")
	}
}

func TestEncodeTextRoute(t *testing.T) {
	tests := []struct {
		name           string
		editingEnabled bool
		override       string
		wantPromptKey  bool
	}{
		{"editing disabled omits promptTemplate", false, "custom {input}", false},
		{"editing enabled includes override", true, "custom {input}", true},
		{"editing enabled but no override", true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &restapi.UseCaseConfig{
				UseCaseType:              restapi.UseCaseTypeText,
				UserPromptEditingEnabled: tt.editingEnabled,
			}
			enc := NewEncoder(cfg, auth.StaticProvider{Value: "tok-abc"})

			data, err := enc.Encode(context.Background(), EncodeRequest{
				Message:        "Hello",
				ConversationID: "conv-1",
				PromptOverride: tt.override,
			})
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			got := decode(t, data)
			if got["action"] != "text-route" {
				t.Errorf("action = %v", got["action"])
			}
			if got["question"] != "Hello" {
				t.Errorf("question = %v", got["question"])
			}
			if got["authToken"] != "tok-abc" {
				t.Errorf("authToken = %v", got["authToken"])
			}
			_, hasPrompt := got["promptTemplate"]
			if hasPrompt != tt.wantPromptKey {
				t.Errorf("promptTemplate present = %v, want %v", hasPrompt, tt.wantPromptKey)
			}
		})
	}
}

func TestEncodeTextRouteTokenFailure(t *testing.T) {
	cfg := &restapi.UseCaseConfig{UseCaseType: restapi.UseCaseTypeText}
	enc := NewEncoder(cfg, auth.StaticProvider{})

	_, err := enc.Encode(context.Background(), EncodeRequest{Message: "Hello"})
	if !errors.Is(err, auth.ErrNoToken) {
		t.Errorf("Encode() error = %v, want ErrNoToken", err)
	}
}

func TestEncodeMultimodalRoutes(t *testing.T) {
	for _, useCaseType := range []string{restapi.UseCaseTypeAgentBuilder, restapi.UseCaseTypeWorkflow} {
		t.Run(useCaseType, func(t *testing.T) {
			cfg := &restapi.UseCaseConfig{UseCaseType: useCaseType, UseCaseID: "uc-9"}
			enc := NewEncoder(cfg, auth.StaticProvider{Value: "tok"})

			refs := []model.AttachmentRef{
				{FileName: "a.png", FileContentType: "image/png", FileSize: 3},
			}
			data, err := enc.Encode(context.Background(), EncodeRequest{
				Message:        "Describe this",
				ConversationID: "conv-1",
				MessageID:      "msg-7",
				Attachments:    refs,
			})
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			got := decode(t, data)
			if got["useCaseId"] != "uc-9" {
				t.Errorf("useCaseId = %v", got["useCaseId"])
			}
			if got["messageId"] != "msg-7" {
				t.Errorf("messageId = %v", got["messageId"])
			}
			files, ok := got["files"].([]any)
			if !ok || len(files) != 1 {
				t.Fatalf("files = %v", got["files"])
			}
			file := files[0].(map[string]any)
			if file["fileName"] != "a.png" {
				t.Errorf("fileName = %v", file["fileName"])
			}
		})
	}
}

func TestEncodeMissingConfig(t *testing.T) {
	enc := NewEncoder(nil, auth.StaticProvider{Value: "tok"})
	_, err := enc.Encode(context.Background(), EncodeRequest{Message: "Hello"})
	if !errors.Is(err, ErrNoUseCaseConfig) {
		t.Errorf("Encode() error = %v, want ErrNoUseCaseConfig", err)
	}
}

func TestEncodeUnknownType(t *testing.T) {
	enc := NewEncoder(&restapi.UseCaseConfig{UseCaseType: "Mystery"}, auth.StaticProvider{Value: "tok"})
	_, err := enc.Encode(context.Background(), EncodeRequest{Message: "Hello"})
	if !errors.Is(err, ErrUnknownUseCaseType) {
		t.Errorf("Encode() error = %v, want ErrUnknownUseCaseType", err)
	}
}
