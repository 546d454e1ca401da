// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the main chat screen: transcript viewport, input
// box, attachment staging, feedback overlay, and the status bar fed by the
// session engine's notifications.
package chat

import (
	"context"
	"fmt"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/export"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/feedback"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/files"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/model"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/notify"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/restapi"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/session"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/store"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/transport"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/ui/components"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

type engineEventMsg struct {
	ev session.Event
	ok bool
}

type notificationMsg notify.Notification

type statusTickMsg time.Time

type sendResultMsg struct{ err error }

type attachResultMsg struct {
	name string
	err  error
}

type feedbackResultMsg struct{ err error }

type resetResultMsg struct{ err error }

type reconcileResultMsg struct{ err error }

// =============================================================================
// MODEL
// =============================================================================

// Options carries the collaborators the chat screen needs.
type Options struct {
	Engine      *session.Engine
	Feedback    *feedback.Controller
	Attachments *files.Manager
	Prefs       *store.PreferenceStore
	UseCase     *restapi.UseCaseConfig
	Sink        *components.ChannelSink
	Theme       *styles.Theme

	RenderMarkdown bool
	ShowSources    bool
	ShowThinking   bool
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	opts Options
	keys KeyMap

	// conv is the latest transcript snapshot from the engine. The engine
	// owns the live conversation; the UI only ever sees deep copies.
	conv *model.Conversation

	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model
	status   *components.StatusBar
	confirm  *components.Confirm
	fbForm   *feedbackForm
	render   *renderer

	streaming bool
	connState transport.State
	width     int
	height    int
	ready     bool
	transient string // one-shot hint line above the input
}

// New creates the chat screen model.
func New(opts Options) *Model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = opts.Theme.Spinner

	maxComment := feedback.DefaultMaxCommentLength

	return &Model{
		opts:    opts,
		conv:    opts.Engine.Snapshot(),
		keys:    DefaultKeyMap(),
		input:   ta,
		spin:    sp,
		status:  components.NewStatusBar(opts.Theme),
		confirm: components.NewConfirm(opts.Theme),
		fbForm:  newFeedbackForm(opts.Theme, maxComment),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spin.Tick,
		m.waitEngineEvent(),
		m.waitNotification(),
		m.statusTick(),
	)
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) waitEngineEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.opts.Engine.Events()
		return engineEventMsg{ev: ev, ok: ok}
	}
}

func (m *Model) waitNotification() tea.Cmd {
	return func() tea.Msg {
		return notificationMsg(<-m.opts.Sink.C())
	}
}

func (m *Model) statusTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

func (m *Model) sendMessage(text string) tea.Cmd {
	return func() tea.Msg {
		return sendResultMsg{err: m.opts.Engine.Send(context.Background(), text)}
	}
}

func (m *Model) attachFile(path string) tea.Cmd {
	return func() tea.Msg {
		name := filepath.Base(path)
		content, err := os.ReadFile(path)
		if err != nil {
			return attachResultMsg{name: name, err: fmt.Errorf("reading %s: %w", path, err)}
		}
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = http.DetectContentType(content)
		}
		err = m.opts.Attachments.Add(context.Background(), name, contentType, content)
		return attachResultMsg{name: name, err: err}
	}
}

func (m *Model) removeFile(name string) tea.Cmd {
	return func() tea.Msg {
		return attachResultMsg{name: name, err: m.opts.Attachments.Remove(context.Background(), name)}
	}
}

func (m *Model) submitFeedback(messageID, verdict, comment string) tea.Cmd {
	convID := m.conv.ID
	return func() tea.Msg {
		err := m.opts.Feedback.Submit(context.Background(), convID, messageID, verdict, comment, nil)
		return feedbackResultMsg{err: err}
	}
}

// reconcileFiles cross-checks the staged set against what the backend
// actually holds, flagging uploads that vanished server-side.
func (m *Model) reconcileFiles() tea.Cmd {
	return func() tea.Msg {
		_, err := m.opts.Attachments.Reconcile(context.Background())
		return reconcileResultMsg{err: err}
	}
}

func (m *Model) resetConversation() tea.Cmd {
	return func() tea.Msg {
		return resetResultMsg{err: m.opts.Engine.ResetConversation()}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case engineEventMsg:
		if !msg.ok {
			return m, tea.Quit
		}
		return m.handleEngineEvent(msg.ev)

	case notificationMsg:
		m.status.SetNotification(notify.Notification(msg))
		return m, m.waitNotification()

	case statusTickMsg:
		m.status.ClearExpired(time.Time(msg))
		return m, m.statusTick()

	case sendResultMsg:
		// Transport errors already surfaced as transcript alerts or
		// notifications; encoding defects are diagnostics only.
		if msg.err != nil {
			log.Printf("chat: send failed: %v", msg.err)
			m.streaming = false
		}
		return m, nil

	case attachResultMsg:
		if msg.err != nil {
			m.transient = msg.err.Error()
		} else {
			m.transient = ""
		}
		m.refreshViewport(false)
		return m, nil

	case feedbackResultMsg:
		if msg.err != nil {
			log.Printf("chat: feedback: %v", msg.err)
		}
		return m, nil

	case reconcileResultMsg:
		if msg.err != nil {
			m.transient = "Could not verify uploads with the backend."
			log.Printf("chat: reconcile: %v", msg.err)
		}
		m.refreshViewport(false)
		return m, nil

	case resetResultMsg:
		if msg.err != nil {
			m.transient = "Could not reset the conversation."
			log.Printf("chat: %v", msg.err)
		}
		m.refreshViewport(true)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.opts.Theme.Resize(msg.Width, msg.Height)

	inputHeight := 5
	chromeHeight := 3 // header + status bar + staged files line
	vpHeight := msg.Height - inputHeight - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.SetWidth(msg.Width - 4)

	m.render = newRenderer(m.opts.Theme, msg.Width-2,
		m.opts.RenderMarkdown, m.opts.ShowSources, m.opts.ShowThinking)
	m.refreshViewport(true)
	return m, nil
}

func (m *Model) handleEngineEvent(ev session.Event) (tea.Model, tea.Cmd) {
	if ev.Conversation != nil {
		m.conv = ev.Conversation
	}
	switch ev.Kind {
	case session.EventConversationUpdated:
		m.streaming = m.conv.Open() != nil
		m.refreshViewport(true)
	case session.EventTurnClosed:
		m.streaming = false
		m.refreshViewport(true)
	case session.EventConnectionChanged:
		m.connState = ev.State
	}
	return m, m.waitEngineEvent()
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Overlays capture input first.
	if m.confirm.Visible() {
		switch msg.String() {
		case "y", "Y":
			m.confirm.Dismiss()
			return m, m.resetConversation()
		case "n", "N", "esc":
			m.confirm.Dismiss()
		}
		return m, nil
	}
	if m.fbForm.active {
		switch {
		case msg.Type == tea.KeyEnter:
			form := m.fbForm
			form.dismiss()
			return m, m.submitFeedback(form.messageID, form.verdict, form.comment.Value())
		case msg.Type == tea.KeyEsc:
			m.fbForm.dismiss()
			return m, nil
		}
		var cmd tea.Cmd
		m.fbForm.comment, cmd = m.fbForm.comment.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Reset):
		m.confirm.Ask("Start a new conversation? The current transcript will be cleared.")
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.FeedbackUp):
		return m.openFeedback(restapi.FeedbackPositive)

	case key.Matches(msg, m.keys.FeedbackDown):
		return m.openFeedback(restapi.FeedbackNegative)

	case key.Matches(msg, m.keys.NewLine):
		m.input.InsertString("\n")
		return m, nil

	case key.Matches(msg, m.keys.Send):
		return m.handleSubmit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// openFeedback targets the latest closed assistant message.
func (m *Model) openFeedback(verdict string) (tea.Model, tea.Cmd) {
	if m.opts.UseCase == nil || !m.opts.UseCase.FeedbackEnabled || m.opts.Feedback == nil {
		m.transient = "Feedback is not enabled for this deployment."
		return m, nil
	}
	last := m.conv.LastMessage()
	if last == nil || last.Role != model.RoleAssistant || last.IsStreaming {
		m.transient = "No finished response to rate yet."
		return m, nil
	}
	if m.opts.Feedback.Submitted(last.ID) {
		m.transient = "Feedback was already submitted for this response."
		return m, nil
	}
	if verdict == restapi.FeedbackPositive {
		// Thumbs-up needs no comment.
		return m, m.submitFeedback(last.ID, verdict, "")
	}
	m.fbForm.open(last.ID, verdict)
	return m, textarea.Blink
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	cmd := parseCommand(text)

	switch cmd.kind {
	case cmdNone:
		if cmd.arg == "" || m.streaming {
			return m, nil
		}
		if m.opts.Attachments != nil && m.opts.Attachments.HasPending() {
			m.transient = "Attachments are still uploading."
			return m, nil
		}
		m.input.Reset()
		m.transient = ""
		m.streaming = true
		return m, m.sendMessage(cmd.arg)

	case cmdAttach:
		m.input.Reset()
		if !m.multimodal() {
			m.transient = "Attachments are not enabled for this deployment."
			return m, nil
		}
		if cmd.arg == "" {
			m.transient = "Usage: /attach <path>"
			return m, nil
		}
		return m, m.attachFile(cmd.arg)

	case cmdRemove:
		m.input.Reset()
		if !m.multimodal() {
			m.transient = "Attachments are not enabled for this deployment."
			return m, nil
		}
		if cmd.arg == "" {
			m.transient = "Usage: /remove <name>"
			return m, nil
		}
		return m, m.removeFile(cmd.arg)

	case cmdFiles:
		m.input.Reset()
		if !m.multimodal() {
			m.transient = "Attachments are not enabled for this deployment."
			return m, nil
		}
		m.transient = "" // the staging area below already lists files
		return m, m.reconcileFiles()

	case cmdPrompt:
		m.input.Reset()
		return m.handlePromptOverride(cmd.arg)

	case cmdReset:
		m.input.Reset()
		m.confirm.Ask("Start a new conversation? The current transcript will be cleared.")
		return m, nil

	case cmdExport:
		m.input.Reset()
		return m.handleExport(cmd.arg)

	case cmdHelp:
		m.input.Reset()
		m.transient = helpText(m.multimodal(), m.promptEditing())
		return m, nil

	case cmdQuit:
		return m, tea.Quit

	default:
		m.input.Reset()
		m.transient = unknownCommandText(cmd.arg)
		return m, nil
	}
}

func (m *Model) handleExport(format string) (tea.Model, tea.Cmd) {
	conv := m.conv
	if conv.IsEmpty() {
		m.transient = "Nothing to export yet."
		return m, nil
	}
	exporter, err := export.ForFormat(format)
	if err != nil {
		m.transient = err.Error()
		return m, nil
	}
	path, err := export.ToFile(conv, exporter, ".")
	if err != nil {
		m.transient = "Export failed."
		log.Printf("chat: export: %v", err)
		return m, nil
	}
	m.transient = "Transcript saved to " + path
	return m, nil
}

func (m *Model) handlePromptOverride(template string) (tea.Model, tea.Cmd) {
	if !m.promptEditing() {
		m.transient = "Prompt editing is not enabled for this deployment."
		return m, nil
	}
	err := m.opts.Prefs.Update(func(p *store.Preferences) {
		p.PromptTemplate = template
	})
	if err != nil {
		m.transient = "Could not save the prompt override."
		log.Printf("chat: %v", err)
		return m, nil
	}
	if template == "" {
		m.transient = "Prompt override cleared."
	} else {
		m.transient = "Prompt override saved."
	}
	return m, nil
}

func (m *Model) multimodal() bool {
	return m.opts.UseCase != nil && m.opts.UseCase.MultimodalEnabled && m.opts.Attachments != nil
}

func (m *Model) promptEditing() bool {
	return m.opts.UseCase != nil && m.opts.UseCase.UserPromptEditingEnabled && m.opts.Prefs != nil
}

func (m *Model) refreshViewport(scrollToLatest bool) {
	if !m.ready || m.render == nil {
		return
	}
	m.viewport.SetContent(m.render.Conversation(m.conv))
	if scrollToLatest {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := m.renderHeader()
	body := m.viewport.View()

	var overlay string
	if m.confirm.Visible() {
		overlay = m.confirm.View()
	} else if m.fbForm.active {
		overlay = m.fbForm.View()
	}

	staged := ""
	if m.multimodal() {
		staged = m.render.stagedFiles(m.opts.Attachments.Files())
	}

	hint := ""
	if m.transient != "" {
		hint = m.opts.Theme.InputHint.Render(m.transient) + "\n"
	}
	if m.streaming {
		hint += m.spin.View() + m.opts.Theme.InputHint.Render(" waiting for response...") + "\n"
	}

	input := m.opts.Theme.InputContainer.Render(m.input.View())
	statusBar := m.status.View(m.connState, [][2]string{
		{"enter", "send"},
		{"ctrl+y/n", "rate"},
		{"ctrl+r", "new"},
		{"ctrl+c", "quit"},
	})

	out := header + "\n" + body + "\n"
	if overlay != "" {
		out += overlay + "\n"
	}
	out += staged + hint + input + "\n" + statusBar
	return out
}

func (m *Model) renderHeader() string {
	title := m.opts.Theme.HeaderTitle.Render(m.conv.GetName())
	meta := ""
	if m.opts.UseCase != nil {
		meta = m.opts.Theme.HeaderMeta.Render("  " + m.opts.UseCase.UseCaseType)
	}
	return m.opts.Theme.Header.Render(title + meta)
}
