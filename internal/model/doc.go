// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages,
// retrieval citations, reasoning traces, tool usage records, and file
// attachments exchanged with the chat backend.
//
// The model is deliberately free of transport and UI concerns: the session
// engine mutates it in response to inbound frames, the store persists it,
// and the UI reads it.
package model
