// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		line string
		want command
	}{
		{"plain message", "hello there", command{kind: cmdNone, arg: "hello there"}},
		{"plain message trimmed", "  hi  ", command{kind: cmdNone, arg: "hi"}},
		{"slash mid-sentence is plain", "use a/b paths", command{kind: cmdNone, arg: "use a/b paths"}},
		{"attach with path", "/attach ./report.pdf", command{kind: cmdAttach, arg: "./report.pdf"}},
		{"attach without path", "/attach", command{kind: cmdAttach, arg: ""}},
		{"remove", "/remove report.pdf", command{kind: cmdRemove, arg: "report.pdf"}},
		{"files", "/files", command{kind: cmdFiles}},
		{"prompt with template", "/prompt Answer briefly: {input}", command{kind: cmdPrompt, arg: "Answer briefly: {input}"}},
		{"prompt empty clears", "/prompt", command{kind: cmdPrompt, arg: ""}},
		{"reset", "/reset", command{kind: cmdReset}},
		{"export default", "/export", command{kind: cmdExport, arg: ""}},
		{"export json", "/export json", command{kind: cmdExport, arg: "json"}},
		{"new alias", "/new", command{kind: cmdReset}},
		{"help", "/help", command{kind: cmdHelp}},
		{"quit", "/quit", command{kind: cmdQuit}},
		{"exit alias", "/exit", command{kind: cmdQuit}},
		{"case insensitive", "/RESET", command{kind: cmdReset}},
		{"unknown keeps name", "/frobnicate now", command{kind: cmdUnknown, arg: "frobnicate"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCommand(tt.line)
			if got.kind != tt.want.kind {
				t.Errorf("parseCommand(%q) kind = %d, want %d", tt.line, got.kind, tt.want.kind)
			}
			if got.arg != tt.want.arg {
				t.Errorf("parseCommand(%q) arg = %q, want %q", tt.line, got.arg, tt.want.arg)
			}
		})
	}
}

func TestHelpTextGating(t *testing.T) {
	full := helpText(true, true)
	for _, want := range []string{"/attach", "/remove", "/files", "/prompt", "/reset", "/export", "/help", "/quit"} {
		if !strings.Contains(full, want) {
			t.Errorf("full help missing %q", want)
		}
	}

	minimal := helpText(false, false)
	for _, banned := range []string{"/attach", "/remove", "/files", "/prompt"} {
		if strings.Contains(minimal, banned) {
			t.Errorf("minimal help should not mention %q", banned)
		}
	}
	if !strings.Contains(minimal, "/reset") {
		t.Error("minimal help missing /reset")
	}
}

func TestUnknownCommandText(t *testing.T) {
	got := unknownCommandText("frobnicate")
	if !strings.Contains(got, "/frobnicate") || !strings.Contains(got, "/help") {
		t.Errorf("unexpected unknown-command text: %q", got)
	}
}
