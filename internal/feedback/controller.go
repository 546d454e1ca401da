// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package feedback manages per-response feedback submission: validation,
// single-flight dispatch, and permanent local state for submitted records.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"unicode"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/notify"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/restapi"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/util"
)

// Validation errors returned before any network call.
var (
	ErrCommentTooLong     = errors.New("feedback comment is too long")
	ErrInvalidCharacters  = errors.New("feedback comment contains unsupported characters")
	ErrInvalidVerdict     = errors.New("feedback verdict must be positive or negative")
	ErrAlreadySubmitted   = errors.New("feedback was already submitted for this response")
	ErrSubmissionInFlight = errors.New("a feedback submission is already in progress")
	ErrMissingIdentity    = errors.New("feedback requires conversation and message ids")
)

// DefaultMaxCommentLength caps the optional comment in runes.
const DefaultMaxCommentLength = 500

// messageState is the lifecycle of feedback for one assistant message.
type messageState int

const (
	stateNone messageState = iota
	stateInFlight
	stateSubmitted
)

// Submitter posts one feedback record. Implemented by restapi.Client.
type Submitter interface {
	SubmitFeedback(ctx context.Context, useCaseID string, req restapi.FeedbackRequest) error
}

// Controller coordinates feedback for the active conversation. Submitted
// feedback is permanent for the session; failed submissions retain the
// error and may be retried. Safe for concurrent use.
type Controller struct {
	submitter        Submitter
	sink             notify.Sink
	useCaseID        string
	maxCommentLength int

	mu     sync.Mutex
	states map[string]messageState
	errs   map[string]error
}

// NewController creates a feedback controller for one use case.
func NewController(submitter Submitter, sink notify.Sink, useCaseID string, maxCommentLength int) *Controller {
	if maxCommentLength <= 0 {
		maxCommentLength = DefaultMaxCommentLength
	}
	return &Controller{
		submitter:        submitter,
		sink:             sink,
		useCaseID:        useCaseID,
		maxCommentLength: maxCommentLength,
		states:           make(map[string]messageState),
		errs:             make(map[string]error),
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func (c *Controller) validate(conversationID, messageID, verdict, comment string) error {
	if conversationID == "" || messageID == "" {
		return ErrMissingIdentity
	}
	if verdict != restapi.FeedbackPositive && verdict != restapi.FeedbackNegative {
		return fmt.Errorf("%w: %q", ErrInvalidVerdict, verdict)
	}
	if n := util.RuneLen(comment); n > c.maxCommentLength {
		return fmt.Errorf("%w: %d runes, limit %d", ErrCommentTooLong, n, c.maxCommentLength)
	}
	for _, r := range comment {
		if r == '\n' || r == '\t' {
			continue
		}
		if !unicode.IsPrint(r) {
			return fmt.Errorf("%w: %q", ErrInvalidCharacters, r)
		}
	}
	return nil
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit validates and posts one feedback record. At most one submission
// per message is in flight at a time; a second call while one is pending
// returns ErrSubmissionInFlight without touching the network. Once a
// message's feedback succeeds it is permanent and further submissions
// return ErrAlreadySubmitted.
func (c *Controller) Submit(ctx context.Context, conversationID, messageID, verdict, comment string, reasons []string) error {
	if err := c.validate(conversationID, messageID, verdict, strings.TrimSpace(comment)); err != nil {
		return err
	}

	c.mu.Lock()
	switch c.states[messageID] {
	case stateSubmitted:
		c.mu.Unlock()
		return ErrAlreadySubmitted
	case stateInFlight:
		c.mu.Unlock()
		return ErrSubmissionInFlight
	}
	c.states[messageID] = stateInFlight
	delete(c.errs, messageID)
	c.mu.Unlock()

	req := restapi.FeedbackRequest{
		UseCaseRecordKey: c.useCaseID,
		ConversationID:   conversationID,
		MessageID:        messageID,
		FeedbackType:     verdict,
		FeedbackReason:   reasons,
		Comment:          strings.TrimSpace(comment),
	}

	err := c.submitter.SubmitFeedback(ctx, c.useCaseID, req)

	c.mu.Lock()
	if err != nil {
		c.states[messageID] = stateNone
		c.errs[messageID] = err
		c.mu.Unlock()
		log.Printf("feedback: submission for message %s failed: %v", messageID, err)
		notify.Error(c.sink, "Feedback could not be submitted. Please try again.")
		return fmt.Errorf("submitting feedback: %w", err)
	}
	c.states[messageID] = stateSubmitted
	c.mu.Unlock()

	notify.Success(c.sink, "Thank you for your feedback!", notify.FeedbackSuccessTTL)
	return nil
}

// Submitted reports whether feedback for the message is permanent.
func (c *Controller) Submitted(messageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[messageID] == stateSubmitted
}

// LastError returns the retained failure for the message, or nil.
func (c *Controller) LastError(messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs[messageID]
}
