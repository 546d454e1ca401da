// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package files

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/restapi"
)

// RestTransfer implements TransferClient on the backend's file endpoints:
// a grant request followed by a direct presigned upload, and a scoped
// delete.
type RestTransfer struct {
	client    *restapi.Client
	useCaseID string
}

// NewRestTransfer creates the REST-backed transfer client.
func NewRestTransfer(client *restapi.Client, useCaseID string) *RestTransfer {
	return &RestTransfer{client: client, useCaseID: useCaseID}
}

// Upload requests a presigned grant for the file and posts the body to it.
func (t *RestTransfer) Upload(ctx context.Context, conversationID, messageID, fileName, contentType string, body []byte) error {
	grants, err := t.client.RequestUploads(ctx, t.useCaseID, conversationID, messageID, []string{fileName})
	if err != nil {
		return err
	}
	if len(grants) != 1 {
		return fmt.Errorf("expected one upload grant, got %d", len(grants))
	}
	return t.client.PerformUpload(ctx, grants[0], contentType, bytes.NewReader(body))
}

// List returns the file names the backend holds for the message.
func (t *RestTransfer) List(ctx context.Context, conversationID, messageID string) ([]string, error) {
	records, err := t.client.ListFiles(ctx, t.useCaseID, conversationID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.FileName)
	}
	return names, nil
}

// Delete removes one uploaded file scoped to the conversation and message.
func (t *RestTransfer) Delete(ctx context.Context, conversationID, messageID, fileName string) error {
	results, err := t.client.DeleteFiles(ctx, t.useCaseID, conversationID, messageID, []string{fileName})
	if err != nil {
		return err
	}
	if !results[fileName] {
		return fmt.Errorf("backend refused to delete %q", fileName)
	}
	return nil
}
