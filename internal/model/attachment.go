// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// UPLOAD STATUS
// =============================================================================

// UploadStatus tracks the lifecycle of a file attachment.
//
// Files are created client-side on selection, move through "uploading" to
// "uploaded" (the authoritative server-confirmed state) or "errored", and
// disappear on explicit deletion or silent replacement by a same-named file.
type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "pending"
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusUploaded  UploadStatus = "uploaded"
	UploadStatusErrored   UploadStatus = "errored"
)

// =============================================================================
// ATTACHMENT TYPES
// =============================================================================

// AttachmentRef is the resolved reference to an uploaded file that is carried
// in an outbound message payload.
type AttachmentRef struct {
	FileName        string `json:"fileName"`
	FileContentType string `json:"fileContentType"`
	FileSize        int64  `json:"fileSize"`
}

// UploadedFile is the client-side view of one attachment, correlated to a
// conversation id and message id for the backend's file store.
type UploadedFile struct {
	FileName        string       `json:"fileName"`
	FileContentType string       `json:"fileContentType"`
	FileSize        int64        `json:"fileSize"`
	ConversationID  string       `json:"conversationId"`
	MessageID       string       `json:"messageId"`
	UploadStatus    UploadStatus `json:"uploadStatus"`
}

// Ref converts the uploaded file to the payload-facing reference.
func (f *UploadedFile) Ref() AttachmentRef {
	return AttachmentRef{
		FileName:        f.FileName,
		FileContentType: f.FileContentType,
		FileSize:        f.FileSize,
	}
}
