// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/auth"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/files"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/model"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/notify"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/restapi"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/store"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/transport"
)

var upgrader = websocket.Upgrader{}

// scriptedBackend answers every inbound payload with a fixed frame script
// and records the payloads it received.
type scriptedBackend struct {
	script   []string
	payloads chan []byte
}

func newScriptedBackend(script ...string) *scriptedBackend {
	return &scriptedBackend{script: script, payloads: make(chan []byte, 8)}
}

func (b *scriptedBackend) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			b.payloads <- data
			for _, frame := range b.script {
				if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
					return
				}
			}
		}
	}
}

func newTestEngine(t *testing.T, srv *httptest.Server, cfg *restapi.UseCaseConfig) (*Engine, *notify.Recorder) {
	t.Helper()

	cache, err := store.NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	convs := store.NewConversationStore(cache)
	prefs := store.NewPreferenceStore(cache)

	tokens := auth.StaticProvider{Value: "tok-test"}
	wsEndpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn := transport.New(transport.AuthenticatedURL(wsEndpoint, tokens))

	rec := notify.NewRecorder()
	e := NewEngine(conn, NewEncoder(cfg, tokens), convs, prefs, nil, rec)
	e.Start(context.Background())
	t.Cleanup(func() { e.Close() })
	return e, rec
}

func waitForTurnClose(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-e.Events():
			if !ok {
				t.Fatal("engine events closed before turn finished")
			}
			if ev.Kind == EventTurnClosed {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for the turn to close")
		}
	}
}

func TestEngineStreamsOneTurn(t *testing.T) {
	backend := newScriptedBackend(
		`{"data":"Hi","conversationId":"conv-backend"}`,
		`{"data":" there"}`,
		`{"sourceDocument":{"excerpt":"greeting norms","location":"s3://kb/greetings.txt","score":0.7}}`,
		`{"data":null}`,
	)
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	cfg := &restapi.UseCaseConfig{UseCaseType: restapi.UseCaseTypeText}
	e, rec := newTestEngine(t, srv, cfg)

	if err := e.Send(context.Background(), "Hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	waitForTurnClose(t, e)

	conv := e.Snapshot()
	if conv.ID != "conv-backend" {
		t.Errorf("conversation id = %q, want backend-assigned conv-backend", conv.ID)
	}
	if conv.MessageCount() != 2 {
		t.Fatalf("MessageCount() = %d, want 2", conv.MessageCount())
	}
	asst := conv.LastMessage()
	if got := asst.GetDisplayContent(); got != "Hi there" {
		t.Errorf("assistant content = %q, want %q", got, "Hi there")
	}
	if len(asst.SourceDocuments) != 1 {
		t.Fatalf("SourceDocuments = %d, want 1", len(asst.SourceDocuments))
	}
	if got := asst.SourceDocuments[0].Location; got != "https://kb.s3.amazonaws.com/greetings.txt" {
		t.Errorf("citation location = %q", got)
	}
	if asst.IsStreaming {
		t.Error("turn should be closed")
	}

	// The outbound payload took the text route with the auth token.
	select {
	case payload := <-backend.payloads:
		var m map[string]any
		if err := json.Unmarshal(payload, &m); err != nil {
			t.Fatalf("payload parse error: %v", err)
		}
		if m["action"] != "text-route" || m["question"] != "Hello" {
			t.Errorf("payload = %v", m)
		}
		if m["authToken"] != "tok-test" {
			t.Errorf("authToken = %v", m["authToken"])
		}
		if _, ok := m["promptTemplate"]; ok {
			t.Error("promptTemplate must be absent when editing is disabled")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("backend never received the payload")
	}

	// Connection success notice was published with the self-clear TTL.
	found := false
	for _, n := range rec.All() {
		if n.Message == "Connected to chat service" && n.TTL == notify.ConnectionSuccessTTL {
			found = true
		}
	}
	if !found {
		t.Errorf("missing connection success notification, got %v", rec.Messages())
	}
}

func TestEngineUpstreamErrorRendersInline(t *testing.T) {
	backend := newScriptedBackend(`{"errorMessage":"Model is overloaded"}`)
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	cfg := &restapi.UseCaseConfig{UseCaseType: restapi.UseCaseTypeAgent}
	e, _ := newTestEngine(t, srv, cfg)

	if err := e.Send(context.Background(), "Hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	waitForTurnClose(t, e)

	asst := e.Snapshot().LastMessage()
	if !strings.Contains(asst.GetDisplayContent(), "Model is overloaded") {
		t.Errorf("content = %q", asst.GetDisplayContent())
	}
	if asst.IsStreaming {
		t.Error("upstream error must close the turn")
	}
}

func TestEngineEventSnapshotsAreStable(t *testing.T) {
	frames := []string{`{"data":"w0","conversationId":"conv-snap"}`}
	for i := 1; i < 40; i++ {
		frames = append(frames, fmt.Sprintf(`{"data":" w%d"}`, i))
	}
	frames = append(frames, `{"data":null}`)
	backend := newScriptedBackend(frames...)
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	cfg := &restapi.UseCaseConfig{UseCaseType: restapi.UseCaseTypeAgent}
	e, _ := newTestEngine(t, srv, cfg)

	if err := e.Send(context.Background(), "Hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// Record each snapshot's rendering at receipt and keep re-rendering it
	// from other goroutines while later deltas land on the live message.
	var wg sync.WaitGroup
	var snapshots []*model.Conversation
	var rendered []string
	deadline := time.After(5 * time.Second)
loop:
	for {
		select {
		case ev, ok := <-e.Events():
			if !ok {
				t.Fatal("engine events closed before turn finished")
			}
			if ev.Conversation != nil {
				snap := ev.Conversation
				if msg := snap.LastMessage(); msg != nil && msg.Role == model.RoleAssistant {
					snapshots = append(snapshots, snap)
					rendered = append(rendered, msg.GetDisplayContent())
					wg.Add(1)
					go func() {
						defer wg.Done()
						for i := 0; i < 100; i++ {
							_ = snap.LastMessage().GetDisplayContent()
						}
					}()
				}
			}
			if ev.Kind == EventTurnClosed {
				break loop
			}
		case <-deadline:
			t.Fatal("timed out waiting for the turn to close")
		}
	}
	wg.Wait()

	if len(snapshots) == 0 {
		t.Fatal("no conversation snapshots were delivered")
	}
	for i, snap := range snapshots {
		if got := snap.LastMessage().GetDisplayContent(); got != rendered[i] {
			t.Errorf("snapshot %d drifted after later deltas: %q -> %q", i, rendered[i], got)
		}
	}
	if got := e.Snapshot().LastMessage().GetDisplayContent(); !strings.HasSuffix(got, "w39") {
		t.Errorf("final content = %q, want all deltas applied", got)
	}
}

func TestEnginePersistsAcrossRestart(t *testing.T) {
	backend := newScriptedBackend(
		`{"data":"Answer","conversationId":"conv-p"}`,
		`{"data":null}`,
	)
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	dir := t.TempDir()
	cache, err := store.NewCache(dir)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	convs := store.NewConversationStore(cache)
	prefs := store.NewPreferenceStore(cache)
	tokens := auth.StaticProvider{Value: "tok"}
	wsEndpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn := transport.New(transport.AuthenticatedURL(wsEndpoint, tokens))

	cfg := &restapi.UseCaseConfig{UseCaseType: restapi.UseCaseTypeAgent}
	e := NewEngine(conn, NewEncoder(cfg, tokens), convs, prefs, nil, notify.NewRecorder())
	e.Start(context.Background())

	if err := e.Send(context.Background(), "Hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	waitForTurnClose(t, e)
	e.Close()

	// A new store seeded from the same cache restores the transcript.
	reloaded := store.NewConversationStore(cache).Active()
	if reloaded.ID != "conv-p" {
		t.Errorf("restored id = %q, want conv-p", reloaded.ID)
	}
	if reloaded.MessageCount() != 2 {
		t.Errorf("restored MessageCount() = %d, want 2", reloaded.MessageCount())
	}
}

func TestEngineSendWithoutConnectionAlerts(t *testing.T) {
	cache, err := store.NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	convs := store.NewConversationStore(cache)
	tokens := auth.StaticProvider{Value: "tok"}
	conn := transport.New(transport.AuthenticatedURL("ws://127.0.0.1:1", tokens))

	cfg := &restapi.UseCaseConfig{UseCaseType: restapi.UseCaseTypeAgent}
	e := NewEngine(conn, NewEncoder(cfg, tokens), convs, store.NewPreferenceStore(cache), nil, notify.NewRecorder())
	go e.loop()
	t.Cleanup(func() { e.Close() })

	err = e.Send(context.Background(), "Hello")
	if err == nil {
		t.Fatal("Send() should fail without a connection")
	}

	found := false
	for _, msg := range convs.Active().Messages {
		if msg.Role == model.RoleAlert && strings.Contains(msg.Content, "not connected") {
			found = true
		}
	}
	if !found {
		t.Error("expected an inline alert message in the transcript")
	}
}

type stubTransfer struct{}

func (stubTransfer) Upload(ctx context.Context, convID, msgID, name, contentType string, body []byte) error {
	return nil
}
func (stubTransfer) Delete(ctx context.Context, convID, msgID, name string) error { return nil }
func (stubTransfer) List(ctx context.Context, convID, msgID string) ([]string, error) {
	return nil, nil
}

func TestEngineFailedSendKeepsAttachmentsStaged(t *testing.T) {
	cache, err := store.NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	convs := store.NewConversationStore(cache)
	tokens := auth.StaticProvider{Value: "tok"}
	conn := transport.New(transport.AuthenticatedURL("ws://127.0.0.1:1", tokens))
	conn.SetReconnectPolicy(1, time.Millisecond)

	attach := files.NewManager(stubTransfer{}, files.Limits{
		MaxFileSizeBytes: 1024,
		MaxFileCount:     3,
		TransferRetries:  1,
	})
	cfg := &restapi.UseCaseConfig{UseCaseType: restapi.UseCaseTypeAgent}
	e := NewEngine(conn, NewEncoder(cfg, tokens), convs, store.NewPreferenceStore(cache), attach, notify.NewRecorder())
	go e.loop()
	t.Cleanup(func() { e.Close() })

	if err := attach.Add(context.Background(), "a.png", "image/png", []byte("x")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	attach.Wait()

	if err := e.Send(context.Background(), "Hello"); err == nil {
		t.Fatal("Send() should fail without a connection")
	}

	// The upload already landed; a send that never left the client must
	// not throw the attachment away.
	staged := attach.Files()
	if len(staged) != 1 {
		t.Fatalf("staged files after failed send = %d, want 1", len(staged))
	}
	if staged[0].UploadStatus != model.UploadStatusUploaded {
		t.Errorf("staged status = %v, want uploaded", staged[0].UploadStatus)
	}
	if refs := attach.ResolveForSend(); len(refs) != 1 {
		t.Errorf("retry resolves %d attachments, want 1", len(refs))
	}
}

func TestEngineCloseStopsMutations(t *testing.T) {
	backend := newScriptedBackend(`{"data":"late"}`)
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	cfg := &restapi.UseCaseConfig{UseCaseType: restapi.UseCaseTypeAgent}
	e, _ := newTestEngine(t, srv, cfg)

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Second close is a no-op.
	if err := e.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if e.Snapshot().MessageCount() != 0 {
		t.Error("no mutation may be applied after teardown")
	}
}
