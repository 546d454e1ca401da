// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package restapi

import (
	"context"
	"fmt"
	"net/url"
)

// Use-case types supported by the backend. The type selects the wire
// payload shape for outbound chat messages.
const (
	UseCaseTypeAgent        = "Agent"
	UseCaseTypeText         = "Text"
	UseCaseTypeAgentBuilder = "AgentBuilder"
	UseCaseTypeWorkflow     = "Workflow"
)

// UseCaseConfig is the deployment configuration fetched at startup. It
// drives payload encoding, attachment availability, and feedback gating.
type UseCaseConfig struct {
	UseCaseType              string `json:"UseCaseType"`
	UseCaseID                string `json:"UseCaseId"`
	ModelProviderName        string `json:"ModelProviderName"`
	UserPromptEditingEnabled bool   `json:"UserPromptEditingEnabled"`
	DefaultPromptTemplate    string `json:"DefaultPromptTemplate"`
	FeedbackEnabled          bool   `json:"FeedbackEnabled"`
	MultimodalEnabled        bool   `json:"MultimodalEnabled"`
}

// IsAgentLike reports whether messages carry attachments and message IDs.
func (u *UseCaseConfig) IsAgentLike() bool {
	return u.UseCaseType == UseCaseTypeAgentBuilder || u.UseCaseType == UseCaseTypeWorkflow
}

type useCaseDetailResponse struct {
	UseCaseType string `json:"UseCaseType"`
	UseCaseID   string `json:"UseCaseId"`
	LlmParams   *struct {
		ModelProvider string `json:"ModelProvider"`
		PromptParams  *struct {
			UserPromptEditingEnabled bool   `json:"UserPromptEditingEnabled"`
			PromptTemplate           string `json:"PromptTemplate"`
		} `json:"PromptParams"`
		MultimodalParams *struct {
			MultimodalEnabled bool `json:"MultimodalEnabled"`
		} `json:"MultimodalParams"`
	} `json:"LlmParams"`
	FeedbackParams *struct {
		FeedbackEnabled bool `json:"FeedbackEnabled"`
	} `json:"FeedbackParams"`
}

// FetchUseCaseDetails retrieves the deployment configuration for useCaseID.
func (c *Client) FetchUseCaseDetails(ctx context.Context, useCaseID string) (*UseCaseConfig, error) {
	if useCaseID == "" {
		return nil, fmt.Errorf("use case id is required")
	}

	var resp useCaseDetailResponse
	path := "/details/" + url.PathEscape(useCaseID)
	if err := c.doJSON(ctx, "GET", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching use case details: %w", err)
	}

	cfg := &UseCaseConfig{
		UseCaseType: resp.UseCaseType,
		UseCaseID:   resp.UseCaseID,
	}
	if cfg.UseCaseID == "" {
		cfg.UseCaseID = useCaseID
	}
	if resp.LlmParams != nil {
		cfg.ModelProviderName = resp.LlmParams.ModelProvider
		if resp.LlmParams.PromptParams != nil {
			cfg.UserPromptEditingEnabled = resp.LlmParams.PromptParams.UserPromptEditingEnabled
			cfg.DefaultPromptTemplate = resp.LlmParams.PromptParams.PromptTemplate
		}
		if resp.LlmParams.MultimodalParams != nil {
			cfg.MultimodalEnabled = resp.LlmParams.MultimodalParams.MultimodalEnabled
		}
	}
	if resp.FeedbackParams != nil {
		cfg.FeedbackEnabled = resp.FeedbackParams.FeedbackEnabled
	}
	return cfg, nil
}
