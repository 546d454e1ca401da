// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
)

// commandKind enumerates the slash commands the input box understands.
type commandKind int

const (
	cmdNone commandKind = iota
	cmdAttach
	cmdRemove
	cmdFiles
	cmdPrompt
	cmdReset
	cmdExport
	cmdHelp
	cmdQuit
	cmdUnknown
)

// command is one parsed input line.
type command struct {
	kind commandKind
	arg  string
}

// parseCommand interprets an input line. Lines that do not start with a
// slash are plain chat messages (cmdNone with the text in arg).
func parseCommand(line string) command {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return command{kind: cmdNone, arg: trimmed}
	}

	name, arg, _ := strings.Cut(trimmed[1:], " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "attach":
		return command{kind: cmdAttach, arg: arg}
	case "remove":
		return command{kind: cmdRemove, arg: arg}
	case "files":
		return command{kind: cmdFiles}
	case "prompt":
		return command{kind: cmdPrompt, arg: arg}
	case "reset", "new":
		return command{kind: cmdReset}
	case "export":
		return command{kind: cmdExport, arg: arg}
	case "help":
		return command{kind: cmdHelp}
	case "quit", "exit":
		return command{kind: cmdQuit}
	default:
		return command{kind: cmdUnknown, arg: name}
	}
}

// helpText lists the available commands.
func helpText(multimodal, promptEditing bool) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	if multimodal {
		b.WriteString("  /attach <path>   stage a file for the next message\n")
		b.WriteString("  /remove <name>   unstage a file\n")
		b.WriteString("  /files           list staged files\n")
	}
	if promptEditing {
		b.WriteString("  /prompt <text>   override the prompt template (empty restores default)\n")
	}
	b.WriteString("  /reset           start a new conversation\n")
	b.WriteString("  /export [format] save the transcript (md or json)\n")
	b.WriteString("  /help            show this help\n")
	b.WriteString("  /quit            exit\n")
	return b.String()
}

func unknownCommandText(name string) string {
	return fmt.Sprintf("Unknown command /%s. Try /help.", name)
}
