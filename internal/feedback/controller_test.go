// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package feedback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/notify"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/restapi"
)

// fakeSubmitter counts calls and optionally blocks or fails.
type fakeSubmitter struct {
	calls   atomic.Int32
	failErr error
	block   chan struct{} // when non-nil, Submit waits until closed
	mu      sync.Mutex
	last    restapi.FeedbackRequest
}

func (f *fakeSubmitter) SubmitFeedback(ctx context.Context, useCaseID string, req restapi.FeedbackRequest) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.failErr
}

func newController(f *fakeSubmitter) (*Controller, *notify.Recorder) {
	rec := notify.NewRecorder()
	return NewController(f, rec, "uc-1", 500), rec
}

func TestSubmitSuccess(t *testing.T) {
	f := &fakeSubmitter{}
	c, rec := newController(f)

	err := c.Submit(context.Background(), "conv-1", "msg-1", restapi.FeedbackPositive, " helpful answer ", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !c.Submitted("msg-1") {
		t.Error("Submitted() should be true after success")
	}
	f.mu.Lock()
	if f.last.Comment != "helpful answer" {
		t.Errorf("comment = %q, want trimmed", f.last.Comment)
	}
	f.mu.Unlock()

	last, ok := rec.Last()
	if !ok || last.Level != notify.LevelSuccess {
		t.Errorf("expected success notification, got %+v", last)
	}
	if last.TTL != notify.FeedbackSuccessTTL {
		t.Errorf("TTL = %v, want %v", last.TTL, notify.FeedbackSuccessTTL)
	}
}

func TestSubmitIsPermanent(t *testing.T) {
	f := &fakeSubmitter{}
	c, _ := newController(f)
	ctx := context.Background()

	if err := c.Submit(ctx, "conv-1", "msg-1", restapi.FeedbackPositive, "", nil); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	err := c.Submit(ctx, "conv-1", "msg-1", restapi.FeedbackNegative, "", nil)
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("second Submit() error = %v, want ErrAlreadySubmitted", err)
	}
	if f.calls.Load() != 1 {
		t.Errorf("network calls = %d, want 1", f.calls.Load())
	}
}

func TestSubmitSingleFlight(t *testing.T) {
	f := &fakeSubmitter{block: make(chan struct{})}
	c, _ := newController(f)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.Submit(ctx, "conv-1", "msg-1", restapi.FeedbackPositive, "", nil)
	}()

	// Wait for the first submission to reach the network.
	for f.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	err := c.Submit(ctx, "conv-1", "msg-1", restapi.FeedbackNegative, "", nil)
	if !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("concurrent Submit() error = %v, want ErrSubmissionInFlight", err)
	}

	close(f.block)
	if err := <-firstDone; err != nil {
		t.Errorf("first Submit() error = %v", err)
	}
	if f.calls.Load() != 1 {
		t.Errorf("network calls = %d, want 1", f.calls.Load())
	}
}

func TestSubmitFailureAllowsRetry(t *testing.T) {
	f := &fakeSubmitter{failErr: errors.New("backend down")}
	c, rec := newController(f)
	ctx := context.Background()

	err := c.Submit(ctx, "conv-1", "msg-1", restapi.FeedbackNegative, "", nil)
	if err == nil {
		t.Fatal("Submit() should fail")
	}
	if c.Submitted("msg-1") {
		t.Error("failed submission must not mark the message submitted")
	}
	if c.LastError("msg-1") == nil {
		t.Error("failure should be retained")
	}
	if last, ok := rec.Last(); !ok || last.Level != notify.LevelError {
		t.Errorf("expected error notification, got %+v", last)
	}

	// Retry succeeds and clears the retained error.
	f.failErr = nil
	if err := c.Submit(ctx, "conv-1", "msg-1", restapi.FeedbackNegative, "", nil); err != nil {
		t.Fatalf("retry Submit() error = %v", err)
	}
	if !c.Submitted("msg-1") {
		t.Error("retry success should mark the message submitted")
	}
	if c.LastError("msg-1") != nil {
		t.Errorf("retained error should be cleared, got %v", c.LastError("msg-1"))
	}
}

func TestValidation(t *testing.T) {
	c, _ := newController(&fakeSubmitter{})
	ctx := context.Background()

	tests := []struct {
		name    string
		convID  string
		msgID   string
		verdict string
		comment string
		wantErr error
	}{
		{"missing conversation id", "", "msg-1", restapi.FeedbackPositive, "", ErrMissingIdentity},
		{"missing message id", "conv-1", "", restapi.FeedbackPositive, "", ErrMissingIdentity},
		{"bad verdict", "conv-1", "msg-1", "meh", "", ErrInvalidVerdict},
		{"comment too long", "conv-1", "msg-1", restapi.FeedbackPositive, strings.Repeat("x", 501), ErrCommentTooLong},
		{"control characters", "conv-1", "msg-1", restapi.FeedbackPositive, "bad\x00comment", ErrInvalidCharacters},
		{"newlines allowed", "conv-1", "msg-1", restapi.FeedbackPositive, "line one\nline two", nil},
		{"comment at limit", "conv-1", "msg-1", restapi.FeedbackPositive, strings.Repeat("y", 500), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Submit(ctx, tt.convID, tt.msgID, tt.verdict, tt.comment, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Submit() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil && !errors.Is(err, ErrAlreadySubmitted) {
				t.Errorf("Submit() error = %v", err)
			}
		})
	}
}
