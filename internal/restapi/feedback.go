// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package restapi

import (
	"context"
	"fmt"
	"net/url"
)

// Feedback verdicts accepted by the backend.
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
)

// FeedbackRequest is one feedback submission for one assistant response.
type FeedbackRequest struct {
	UseCaseRecordKey string   `json:"useCaseRecordKey"`
	ConversationID   string   `json:"conversationId"`
	MessageID        string   `json:"messageId"`
	FeedbackType     string   `json:"feedback"`
	FeedbackReason   []string `json:"feedbackReason,omitempty"`
	Comment          string   `json:"comment,omitempty"`
}

// SubmitFeedback posts one feedback record for the use case.
func (c *Client) SubmitFeedback(ctx context.Context, useCaseID string, req FeedbackRequest) error {
	if req.ConversationID == "" || req.MessageID == "" {
		return fmt.Errorf("feedback requires conversation and message ids")
	}
	path := "/feedback/" + url.PathEscape(useCaseID)
	if err := c.doJSON(ctx, "POST", path, req, nil); err != nil {
		return fmt.Errorf("submitting feedback: %w", err)
	}
	return nil
}
