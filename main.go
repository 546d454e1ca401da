// gaab-chat - terminal client for a deployed generative AI chat use case.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/auth"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/config"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/feedback"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/files"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/restapi"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/session"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/store"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/transport"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/ui/chat"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/ui/components"
	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (TOML or JSON)")
	fresh := flag.Bool("new", false, "discard the cached conversation and start fresh")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gaab-chat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	closeLog := setupLogging()
	defer closeLog()
	log.Printf("gaab-chat %s starting", Version)

	tokens := tokenProvider(cfg)

	// The use-case configuration drives payload routing, so startup
	// cannot proceed without it.
	client := restapi.NewClient(cfg.Backend.RestEndpoint, tokens)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	useCase, err := client.FetchUseCaseDetails(ctx, cfg.Backend.UseCaseID)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching use case details: %v\n", err)
		fmt.Fprintf(os.Stderr, "Check backend.rest_endpoint, backend.use_case_id, and your access token.\n")
		os.Exit(1)
	}
	log.Printf("use case %s (%s)", useCase.UseCaseID, useCase.UseCaseType)

	appDir, err := config.AppDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cache, err := store.NewCache(filepath.Join(appDir, "cache"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening cache: %v\n", err)
		os.Exit(1)
	}

	convs := store.NewConversationStore(cache)
	prefs := store.NewPreferenceStore(cache)
	if *fresh {
		if err := convs.Reset(); err != nil {
			log.Printf("reset: %v", err)
		}
	}

	conn := transport.New(transport.AuthenticatedURL(cfg.Backend.SocketEndpoint, tokens))
	sink := components.NewChannelSink()

	var attachments *files.Manager
	if useCase.MultimodalEnabled && useCase.IsAgentLike() {
		transfer := files.NewRestTransfer(client, useCase.UseCaseID)
		attachments = files.NewManager(transfer, files.Limits{
			MaxFileSizeBytes:    cfg.Attachments.MaxFileSizeBytes,
			MaxFileCount:        cfg.Attachments.MaxFileCount,
			AllowedContentTypes: cfg.Attachments.AllowedContentTypes,
			TransferRetries:     cfg.Attachments.TransferRetries,
		})
	}

	var feedbackCtl *feedback.Controller
	if useCase.FeedbackEnabled {
		feedbackCtl = feedback.NewController(client, sink, useCase.UseCaseID, cfg.Feedback.MaxCommentLength)
	}

	encoder := session.NewEncoder(useCase, tokens)
	engine := session.NewEngine(conn, encoder, convs, prefs, attachments, sink)

	m := chat.New(chat.Options{
		Engine:         engine,
		Feedback:       feedbackCtl,
		Attachments:    attachments,
		Prefs:          prefs,
		UseCase:        useCase,
		Sink:           sink,
		Theme:          buildTheme(cfg.UI.Theme),
		RenderMarkdown: cfg.UI.RenderMarkdown,
		ShowSources:    cfg.UI.ShowSources,
		ShowThinking:   cfg.UI.ShowThinking,
	})

	engine.Start(context.Background())

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running gaab-chat: %v\n", err)
		os.Exit(1)
	}

	if err := engine.Close(); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if attachments != nil {
		attachments.Wait()
	}
}

// =============================================================================
// STARTUP HELPERS
// =============================================================================

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// setupLogging sends the standard logger to a debug file so diagnostics
// never corrupt the alternate screen. Logging is best-effort.
func setupLogging() func() {
	appDir, err := config.AppDir()
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	f, err := os.OpenFile(filepath.Join(appDir, "debug.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	return func() { f.Close() }
}

// tokenProvider picks the token source: an agent-maintained file when
// configured, otherwise the environment.
func tokenProvider(cfg *config.Config) auth.TokenProvider {
	if cfg.Auth.TokenFile != "" {
		refresh := time.Duration(cfg.Auth.TokenRefreshSecs) * time.Second
		return auth.NewFileProvider(cfg.Auth.TokenFile, refresh)
	}
	return auth.EnvProvider{Var: cfg.Auth.TokenEnv}
}

func buildTheme(name string) *styles.Theme {
	// Startup runs before the first WindowSizeMsg; the theme is resized
	// once the terminal reports its dimensions.
	const w, h = 80, 24
	switch name {
	case "dark":
		return styles.ForceDark(w, h)
	case "light":
		return styles.ForceLight(w, h)
	default:
		return styles.NewTheme(w, h)
	}
}
