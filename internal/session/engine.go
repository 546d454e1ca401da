// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/files"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/model"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/notify"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/store"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/transport"
)

// EventKind discriminates engine events delivered to the UI.
type EventKind int

const (
	// EventConversationUpdated means the transcript changed; the UI
	// should re-render and scroll to the latest message.
	EventConversationUpdated EventKind = iota
	// EventTurnClosed means the streaming turn finished.
	EventTurnClosed
	// EventConnectionChanged reports a transport state transition.
	EventConnectionChanged
)

// Event is one engine-to-UI signal. Transcript events carry an immutable
// snapshot of the conversation; the UI renders from the snapshot so the
// engine's goroutine can keep mutating the live transcript underneath.
type Event struct {
	Kind  EventKind
	State transport.State
	// Conversation is a deep copy of the transcript at emit time. Set on
	// EventConversationUpdated and EventTurnClosed.
	Conversation *model.Conversation
}

// Engine owns the chat session: transcript, transport, payload encoding,
// attachments, and the inbound frame loop. One engine serves one UI.
type Engine struct {
	conn    *transport.Conn
	encoder *Encoder
	convs   *store.ConversationStore
	prefs   *store.PreferenceStore
	attach  *files.Manager
	sink    notify.Sink
	interp  Interpreter

	events chan Event

	mu     sync.Mutex
	closed bool

	done chan struct{}
}

// NewEngine wires the session engine. Call Start to begin consuming
// transport events.
func NewEngine(conn *transport.Conn, encoder *Encoder, convs *store.ConversationStore, prefs *store.PreferenceStore, attach *files.Manager, sink notify.Sink) *Engine {
	e := &Engine{
		conn:    conn,
		encoder: encoder,
		convs:   convs,
		prefs:   prefs,
		attach:  attach,
		sink:    sink,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
	if attach != nil {
		if id := convs.Active().ID; id != "" {
			attach.SetConversationID(id)
		}
		attach.OnConversationID(func(id string) {
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.closed {
				return
			}
			e.convs.AdoptID(id)
		})
	}
	return e
}

// Events returns the engine-to-UI event stream.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Snapshot returns a deep copy of the active transcript, safe to read from
// any goroutine. The live conversation is owned by the engine and is never
// handed out.
func (e *Engine) Snapshot() *model.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.convs.Active().Clone()
}

// Start connects the transport and runs the inbound loop until Close.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		notify.Info(e.sink, "Connecting to chat service...")
		if err := e.conn.Connect(ctx); err != nil {
			log.Printf("session: initial connect failed: %v", err)
		}
	}()
	go e.loop()
}

// loop consumes transport events in order. Frames mutate the conversation
// synchronously, one at a time, preserving arrival order.
func (e *Engine) loop() {
	defer close(e.done)
	for ev := range e.conn.Events() {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		switch ev.Kind {
		case transport.EventStatus:
			e.handleStatus(ev)
		case transport.EventFrame:
			e.handleFrame(ev.Frame)
		}
		e.mu.Unlock()
	}
}

// handleStatus publishes human-readable connection notices. Caller holds
// e.mu.
func (e *Engine) handleStatus(ev transport.Event) {
	switch ev.State {
	case transport.StateConnecting:
		if ev.Err != nil {
			notify.Info(e.sink, "Disconnected. Attempting to reconnect...")
		} else {
			notify.Info(e.sink, "Connecting to chat service...")
		}
	case transport.StateOpen:
		notify.Success(e.sink, "Connected to chat service", notify.ConnectionSuccessTTL)
	case transport.StateError:
		if errors.Is(ev.Err, transport.ErrAuthToken) {
			notify.Error(e.sink, "Could not sign in to the chat service. Check your credentials.")
		} else if ev.Err != nil {
			notify.Error(e.sink, "Chat connection failed.")
		}
	case transport.StateClosed:
		if ev.Err != nil {
			notify.Error(e.sink, "Chat service is unreachable. Sending a message will retry.")
		}
	}
	e.emit(Event{Kind: EventConnectionChanged, State: ev.State})
}

// handleFrame decodes and applies one inbound frame. Caller holds e.mu.
func (e *Engine) handleFrame(raw []byte) {
	frame, err := DecodeFrame(raw)
	if err != nil {
		log.Printf("session: dropping malformed frame: %v", err)
		return
	}

	conv := e.convs.Active()
	kind, backendConvID := e.interp.Apply(conv, frame)

	if backendConvID != "" {
		e.convs.AdoptID(backendConvID)
		if e.attach != nil {
			e.attach.SetConversationID(backendConvID)
		}
	}
	if kind == MutationNone {
		return
	}

	if err := e.convs.Persist(); err != nil {
		log.Printf("session: %v", err)
	}
	e.emit(Event{Kind: EventConversationUpdated})
	if kind == MutationClose || kind == MutationError {
		e.emit(Event{Kind: EventTurnClosed})
	}
}

// emit delivers one event to the UI. Caller holds e.mu, so the snapshot is
// taken with no mutation in flight.
func (e *Engine) emit(ev Event) {
	if ev.Kind == EventConversationUpdated || ev.Kind == EventTurnClosed {
		ev.Conversation = e.convs.Active().Clone()
	}
	select {
	case e.events <- ev:
	default:
		log.Printf("session: event buffer full, dropping event")
	}
}

// =============================================================================
// SENDING
// =============================================================================

// Send appends the user's message to the transcript, opens the assistant
// turn, and writes the encoded payload to the socket. A transport that
// cannot be made ready surfaces as an inline alert in the transcript. A
// missing or unknown use-case configuration is a deployment defect and is
// only logged.
func (e *Engine) Send(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return transport.ErrClosed
	}

	conv := e.convs.Active()

	var refs []model.AttachmentRef
	var messageID string
	if e.attach != nil {
		messageID = e.attach.MessageID()
		refs = e.attach.ResolveForSend()
	}

	prompt := ""
	if e.prefs != nil {
		prompt = e.prefs.Get().PromptTemplate
	}

	payload, err := e.encoder.Encode(ctx, EncodeRequest{
		Message:        text,
		ConversationID: conv.ID,
		PromptOverride: prompt,
		MessageID:      messageID,
		Attachments:    refs,
	})
	if err != nil {
		if errors.Is(err, ErrNoUseCaseConfig) || errors.Is(err, ErrUnknownUseCaseType) {
			log.Printf("session: cannot encode message: %v", err)
			return err
		}
		return err
	}

	conv.AddUserMessage(text, refs)
	conv.OpenAssistant()
	if err := e.convs.Persist(); err != nil {
		log.Printf("session: %v", err)
	}
	e.emit(Event{Kind: EventConversationUpdated})

	if err := e.conn.Send(ctx, payload); err != nil {
		if errors.Is(err, transport.ErrNotConnected) {
			conv.CloseTurn()
			conv.AddAlert("Unable to send message. The chat service is not connected.")
			if perr := e.convs.Persist(); perr != nil {
				log.Printf("session: %v", perr)
			}
			e.emit(Event{Kind: EventConversationUpdated})
		}
		// Staged attachments stay put so a retry carries them.
		return err
	}
	if e.attach != nil {
		e.attach.CommitSend()
	}
	return nil
}

// ResetConversation clears the transcript and conversation id after the UI
// has confirmed the action with the user. Staged attachments are dropped.
func (e *Engine) ResetConversation() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return transport.ErrClosed
	}
	if err := e.convs.Reset(); err != nil {
		return err
	}
	if e.attach != nil {
		e.attach.Clear()
	}
	e.emit(Event{Kind: EventConversationUpdated})
	return nil
}

// Close tears the session down: the socket is closed and no further
// inbound mutation is applied. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	err := e.conn.Close()
	<-e.done
	close(e.events)
	return err
}
