// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package restapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// PresignedUpload is one upload grant issued by the backend. The file body
// is posted directly to UploadURL as a multipart form with FormFields.
type PresignedUpload struct {
	FileName   string            `json:"fileName"`
	UploadURL  string            `json:"uploadUrl"`
	FormFields map[string]string `json:"formFields"`
}

// FileRecord is the backend's view of one uploaded file.
type FileRecord struct {
	FileName        string `json:"fileName"`
	FileContentType string `json:"fileContentType"`
	FileSize        int64  `json:"fileSize"`
	Status          string `json:"status"`
}

type uploadGrantRequest struct {
	FileNames      []string `json:"fileNames"`
	ConversationID string   `json:"conversationId"`
	MessageID      string   `json:"messageId"`
}

type uploadGrantResponse struct {
	Uploads []PresignedUpload `json:"uploads"`
}

type deleteFilesRequest struct {
	FileNames      []string `json:"fileNames"`
	ConversationID string   `json:"conversationId"`
	MessageID      string   `json:"messageId"`
}

type deleteFilesResponse struct {
	Deletions []struct {
		FileName string `json:"fileName"`
		Success  bool   `json:"success"`
	} `json:"deletions"`
}

// RequestUploads asks the backend for presigned upload grants, one per file
// name, scoped to the conversation and message.
func (c *Client) RequestUploads(ctx context.Context, useCaseID, conversationID, messageID string, fileNames []string) ([]PresignedUpload, error) {
	if len(fileNames) == 0 {
		return nil, nil
	}
	req := uploadGrantRequest{
		FileNames:      fileNames,
		ConversationID: conversationID,
		MessageID:      messageID,
	}
	var resp uploadGrantResponse
	path := "/files/" + url.PathEscape(useCaseID)
	if err := c.doJSON(ctx, "POST", path, req, &resp); err != nil {
		return nil, fmt.Errorf("requesting upload grants: %w", err)
	}
	if len(resp.Uploads) != len(fileNames) {
		return nil, fmt.Errorf("backend issued %d grants for %d files", len(resp.Uploads), len(fileNames))
	}
	return resp.Uploads, nil
}

// PerformUpload posts the file body to the presigned URL as a multipart
// form. The grant's form fields are written before the file part.
func (c *Client) PerformUpload(ctx context.Context, grant PresignedUpload, contentType string, body io.Reader) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range grant.FormFields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("writing form field %q: %w", key, err)
		}
	}
	part, err := writer.CreateFormFile("file", grant.FileName)
	if err != nil {
		return fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("copying file body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, grant.UploadURL, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: "upload rejected"}
	}
	return nil
}

// DeleteFiles removes previously uploaded files. The returned map holds a
// per-file success flag keyed by file name.
func (c *Client) DeleteFiles(ctx context.Context, useCaseID, conversationID, messageID string, fileNames []string) (map[string]bool, error) {
	if len(fileNames) == 0 {
		return map[string]bool{}, nil
	}
	req := deleteFilesRequest{
		FileNames:      fileNames,
		ConversationID: conversationID,
		MessageID:      messageID,
	}
	var resp deleteFilesResponse
	path := "/files/" + url.PathEscape(useCaseID)
	if err := c.doJSON(ctx, "DELETE", path, req, &resp); err != nil {
		return nil, fmt.Errorf("deleting files: %w", err)
	}
	results := make(map[string]bool, len(resp.Deletions))
	for _, d := range resp.Deletions {
		results[d.FileName] = d.Success
	}
	return results, nil
}

// ListFiles returns the backend's records for a conversation's files.
func (c *Client) ListFiles(ctx context.Context, useCaseID, conversationID string) ([]FileRecord, error) {
	var resp struct {
		Files []FileRecord `json:"files"`
	}
	path := "/files/" + url.PathEscape(useCaseID) + "?conversationId=" + url.QueryEscape(conversationID)
	if err := c.doJSON(ctx, "GET", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return resp.Files, nil
}
