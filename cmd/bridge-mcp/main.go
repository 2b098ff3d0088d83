package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/contextbridge/bridged/internal/analyzer"
	"github.com/contextbridge/bridged/internal/config"
	"github.com/contextbridge/bridged/internal/logging"
	"github.com/contextbridge/bridged/internal/mcpserver"
	"github.com/contextbridge/bridged/internal/page"
	"github.com/contextbridge/bridged/internal/provider"
)

// bridge-mcp runs the MCP server over stdio, pulling context straight from
// the configured frontend instead of going through the daemon.
func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/bridged/config.toml)")
	baseURL := flag.String("frontend", "", "frontend base URL (overrides config)")
	flag.Parse()

	settings, err := config.LoadOrCreate(*configPath)
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	// Stdout carries the MCP stream; logs go to stderr or file only.
	log := logging.New(logging.Options{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
		File:   settings.LogFile,
	})
	defer log.Sync()

	frontend := settings.FrontendBaseURL
	if *baseURL != "" {
		frontend = *baseURL
	}
	if frontend == "" {
		log.Warn("no frontend base url configured, context tools will fail until one is set")
	}

	var authHeaders map[string]string
	if settings.FrontendToken != "" {
		authHeaders = map[string]string{"Authorization": "Bearer " + settings.FrontendToken}
	}

	rest := provider.NewREST(provider.Config{
		BaseURL:           frontend,
		AuthHeaders:       authHeaders,
		EnableScreenshots: settings.ScreenshotsEnabled,
		WhitelistedPages:  settings.ScreenshotWhitelist,
		ScreenshotDefaults: provider.ScreenshotOptions{
			Format:   settings.ScreenshotFormat,
			Quality:  settings.ScreenshotQuality,
			FullPage: settings.ScreenshotFullPage,
		},
		Timeout: settings.FrontendTimeout,
	}, log.Named("provider"))
	defer rest.Cleanup()

	server := mcpserver.New(rest, page.NewStore(), analyzer.New(), nil, mcpserver.Options{
		Implementation: &mcp.Implementation{Name: "context-bridge", Version: "v1.0.0"},
		Instructions:   "Use context.get for the current page state and context.analyze for classification, issues, and suggested instructions.",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatal("mcp server exited", zap.Error(err))
	}
}
