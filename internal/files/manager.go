// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package files implements the attachment lifecycle: validation, upload with
// bounded retries, duplicate-name replacement, deletion, and resolution of
// the attachment list for an outbound message.
package files

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/model"
)

// Validation errors surfaced to the UI per file.
var (
	ErrFileTooLarge    = errors.New("file exceeds the size limit")
	ErrTooManyFiles    = errors.New("attachment limit reached")
	ErrTypeNotAllowed  = errors.New("file type is not allowed")
	ErrEmptyFile       = errors.New("file is empty")
	ErrUploadFailed    = errors.New("upload failed")
	ErrNothingToRemove = errors.New("no such attachment")
)

// TransferClient moves file bodies to and from the backend. Implemented by
// RestTransfer; tests substitute fakes.
type TransferClient interface {
	Upload(ctx context.Context, conversationID, messageID, fileName, contentType string, body []byte) error
	Delete(ctx context.Context, conversationID, messageID, fileName string) error
	// List returns the names the backend currently holds for the message.
	List(ctx context.Context, conversationID, messageID string) ([]string, error)
}

// Limits are the client-side validation caps.
type Limits struct {
	MaxFileSizeBytes    int64
	MaxFileCount        int
	AllowedContentTypes []string
	TransferRetries     int
}

// entry tracks one attachment through its lifecycle.
type entry struct {
	file      model.UploadedFile
	content   []byte
	uploadErr error
	deleteErr error
	order     int

	// removed marks an entry unstaged while its upload was still in
	// flight; the upload goroutine deletes the landed copy afterwards.
	removed bool
}

// Manager owns the attachments staged for the next outbound message. All
// exported methods are safe for concurrent use; uploads for distinct file
// names run concurrently while operations on the same name are sequential.
type Manager struct {
	transfer TransferClient
	limits   Limits

	mu      sync.Mutex
	entries map[string]*entry
	order   int

	conversationID string
	messageID      string

	// nameLocks serializes transfer operations per file name.
	nameLocks map[string]*sync.Mutex

	// onConversationID is invoked when the manager mints a conversation
	// id before the backend has assigned one.
	onConversationID func(id string)

	wg sync.WaitGroup
}

// NewManager creates an attachment manager.
func NewManager(transfer TransferClient, limits Limits) *Manager {
	if limits.TransferRetries <= 0 {
		limits.TransferRetries = 3
	}
	return &Manager{
		transfer:  transfer,
		limits:    limits,
		entries:   make(map[string]*entry),
		nameLocks: make(map[string]*sync.Mutex),
	}
}

// SetConversationID adopts the known conversation id. Called when the store
// already holds a backend-assigned id.
func (m *Manager) SetConversationID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != "" {
		m.conversationID = id
	}
}

// OnConversationID registers a callback fired when the manager generates a
// conversation id itself.
func (m *Manager) OnConversationID(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConversationID = fn
}

// ids returns the conversation and message ids, minting either lazily.
// Caller must hold m.mu.
func (m *Manager) ids() (string, string) {
	if m.conversationID == "" {
		m.conversationID = uuid.NewString()
		if m.onConversationID != nil {
			go m.onConversationID(m.conversationID)
		}
	}
	if m.messageID == "" {
		m.messageID = uuid.NewString()
	}
	return m.conversationID, m.messageID
}

// MessageID returns the id the staged attachments are scoped to, minting it
// if needed.
func (m *Manager) MessageID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, msgID := m.ids()
	return msgID
}

// nameLock returns the per-name mutex, creating it on first use.
func (m *Manager) nameLock(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.nameLocks[name]
	if !ok {
		l = &sync.Mutex{}
		m.nameLocks[name] = l
	}
	return l
}

// =============================================================================
// VALIDATION
// =============================================================================

func (m *Manager) validate(fileName, contentType string, size int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, fileName)
	}
	if size > m.limits.MaxFileSizeBytes {
		return fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, fileName, size)
	}
	if len(m.limits.AllowedContentTypes) > 0 {
		allowed := false
		for _, t := range m.limits.AllowedContentTypes {
			if t == contentType {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: %s (%s)", ErrTypeNotAllowed, fileName, contentType)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, replacing := m.entries[fileName]; !replacing && len(m.entries) >= m.limits.MaxFileCount {
		return fmt.Errorf("%w: at most %d files", ErrTooManyFiles, m.limits.MaxFileCount)
	}
	return nil
}

// =============================================================================
// ADD / REPLACE
// =============================================================================

// Add stages a file and starts its upload. Re-adding a name that is already
// staged replaces it: the old copy is deleted from the backend first, then
// the new copy is uploaded, strictly in that order. Validation failures are
// returned synchronously and nothing is staged.
func (m *Manager) Add(ctx context.Context, fileName, contentType string, content []byte) error {
	if err := m.validate(fileName, contentType, int64(len(content))); err != nil {
		return err
	}

	m.mu.Lock()
	convID, msgID := m.ids()
	prev, replacing := m.entries[fileName]
	e := &entry{
		file: model.UploadedFile{
			FileName:        fileName,
			FileContentType: contentType,
			FileSize:        int64(len(content)),
			ConversationID:  convID,
			MessageID:       msgID,
			UploadStatus:    model.UploadStatusPending,
		},
		content: content,
		order:   m.order,
	}
	m.order++
	m.entries[fileName] = e
	m.mu.Unlock()

	needDelete := replacing && prev.file.UploadStatus == model.UploadStatusUploaded

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		lock := m.nameLock(fileName)
		lock.Lock()
		defer lock.Unlock()

		if needDelete {
			// Replacement deletes the old copy before uploading the
			// new one. A failed delete is logged and the upload
			// still proceeds; the stale copy is excluded at send.
			if err := m.deleteWithRetry(ctx, convID, msgID, fileName); err != nil {
				log.Printf("files: replacing %q: delete of previous copy failed: %v", fileName, err)
				m.mu.Lock()
				if cur, ok := m.entries[fileName]; ok && cur == e {
					cur.deleteErr = err
				}
				m.mu.Unlock()
			}
		}
		m.upload(ctx, e, convID, msgID)
	}()
	return nil
}

// upload runs the bounded retry cycle for one entry. Caller holds the
// entry's name lock.
func (m *Manager) upload(ctx context.Context, e *entry, convID, msgID string) {
	m.setStatus(e, model.UploadStatusUploading, nil)

	var lastErr error
	for attempt := 1; attempt <= m.limits.TransferRetries; attempt++ {
		err := m.transfer.Upload(ctx, convID, msgID, e.file.FileName, e.file.FileContentType, e.content)
		if err == nil {
			m.setStatus(e, model.UploadStatusUploaded, nil)
			if m.wasRemoved(e) {
				// The file was unstaged mid-upload; the copy that
				// just landed must not survive on the backend.
				if derr := m.deleteWithRetry(ctx, convID, msgID, e.file.FileName); derr != nil {
					log.Printf("files: deleting unstaged %q failed: %v", e.file.FileName, derr)
				}
			}
			return
		}
		lastErr = err
		log.Printf("files: upload %q attempt %d/%d failed: %v",
			e.file.FileName, attempt, m.limits.TransferRetries, err)
	}
	m.setStatus(e, model.UploadStatusErrored, fmt.Errorf("%w: %s: %v", ErrUploadFailed, e.file.FileName, lastErr))
}

func (m *Manager) wasRemoved(e *entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return e.removed
}

func (m *Manager) setStatus(e *entry, status model.UploadStatus, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// The entry may have been replaced while its transfer was in flight.
	if cur, ok := m.entries[e.file.FileName]; !ok || cur != e {
		return
	}
	e.file.UploadStatus = status
	e.uploadErr = err
}

func (m *Manager) deleteWithRetry(ctx context.Context, convID, msgID, fileName string) error {
	var lastErr error
	for attempt := 1; attempt <= m.limits.TransferRetries; attempt++ {
		if err := m.transfer.Delete(ctx, convID, msgID, fileName); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// =============================================================================
// REMOVE
// =============================================================================

// Remove unstages a file and deletes its uploaded copy from the backend. A
// file whose upload is still in flight is unstaged immediately; the copy is
// deleted once the upload settles so nothing is orphaned server-side.
func (m *Manager) Remove(ctx context.Context, fileName string) error {
	m.mu.Lock()
	e, ok := m.entries[fileName]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNothingToRemove, fileName)
	}
	delete(m.entries, fileName)
	e.removed = true
	uploaded := e.file.UploadStatus == model.UploadStatusUploaded
	convID, msgID := m.conversationID, m.messageID
	m.mu.Unlock()

	if !uploaded {
		return nil
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		lock := m.nameLock(fileName)
		lock.Lock()
		defer lock.Unlock()
		if err := m.deleteWithRetry(ctx, convID, msgID, fileName); err != nil {
			log.Printf("files: deleting %q failed: %v", fileName, err)
		}
	}()
	return nil
}

// =============================================================================
// INSPECTION AND RESOLUTION
// =============================================================================

// Files returns the staged attachments, errored files first, otherwise in
// the order they were added.
func (m *Manager) Files() []model.UploadedFile {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		iErr := list[i].file.UploadStatus == model.UploadStatusErrored
		jErr := list[j].file.UploadStatus == model.UploadStatusErrored
		if iErr != jErr {
			return iErr
		}
		return list[i].order < list[j].order
	})

	out := make([]model.UploadedFile, len(list))
	for i, e := range list {
		out[i] = e.file
	}
	return out
}

// UploadError returns the retained upload failure for a file, or nil.
func (m *Manager) UploadError(fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[fileName]; ok {
		return e.uploadErr
	}
	return nil
}

// HasPending reports whether any staged file is still pending or uploading.
func (m *Manager) HasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		switch e.file.UploadStatus {
		case model.UploadStatusPending, model.UploadStatusUploading:
			return true
		}
	}
	return false
}

// ResolveForSend returns the attachment references to include in the next
// outbound message: uploaded files only, excluding any whose previous copy
// could not be deleted during replacement. The staged set is untouched;
// call CommitSend once the message actually went out, so a failed send
// keeps the attachments staged for the retry.
func (m *Manager) ResolveForSend() []model.AttachmentRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.file.UploadStatus != model.UploadStatusUploaded {
			continue
		}
		if e.deleteErr != nil {
			log.Printf("files: excluding %q from send: stale copy could not be deleted", e.file.FileName)
			continue
		}
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].order < list[j].order })

	refs := make([]model.AttachmentRef, len(list))
	for i, e := range list {
		refs[i] = e.file.Ref()
	}
	return refs
}

// CommitSend clears the staged set and rotates the message id after a
// successful send, so the next message starts fresh.
func (m *Manager) CommitSend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry)
	m.messageID = ""
}

// Reconcile checks the staged set against the backend's authoritative file
// list. An entry the manager believes uploaded but the backend no longer
// holds is marked errored so the UI surfaces it before the next send.
// Returns the reconciled staged list.
func (m *Manager) Reconcile(ctx context.Context) ([]model.UploadedFile, error) {
	m.mu.Lock()
	if len(m.entries) == 0 {
		m.mu.Unlock()
		return nil, nil
	}
	convID, msgID := m.conversationID, m.messageID
	m.mu.Unlock()

	names, err := m.transfer.List(ctx, convID, msgID)
	if err != nil {
		return nil, fmt.Errorf("listing backend files: %w", err)
	}
	remote := make(map[string]bool, len(names))
	for _, n := range names {
		remote[n] = true
	}

	m.mu.Lock()
	for name, e := range m.entries {
		if e.file.UploadStatus == model.UploadStatusUploaded && !remote[name] {
			log.Printf("files: %q uploaded but missing on the backend", name)
			e.file.UploadStatus = model.UploadStatusErrored
			e.uploadErr = fmt.Errorf("%w: %s: missing on the backend", ErrUploadFailed, name)
		}
	}
	m.mu.Unlock()

	return m.Files(), nil
}

// Clear drops all staged attachments without deleting uploaded copies.
// Used on conversation reset, where the backend discards the conversation's
// files wholesale.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry)
	m.messageID = ""
	m.conversationID = ""
}

// Wait blocks until all in-flight transfers complete. Used by tests and
// shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}
