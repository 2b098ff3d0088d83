package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/contextbridge/bridged/internal/admin"
	"github.com/contextbridge/bridged/internal/analyzer"
	"github.com/contextbridge/bridged/internal/api"
	"github.com/contextbridge/bridged/internal/config"
	"github.com/contextbridge/bridged/internal/httpx"
	"github.com/contextbridge/bridged/internal/instructionlog"
	"github.com/contextbridge/bridged/internal/logging"
	"github.com/contextbridge/bridged/internal/mcpserver"
	"github.com/contextbridge/bridged/internal/page"
	"github.com/contextbridge/bridged/internal/provider"
	"github.com/contextbridge/bridged/internal/session"
	"github.com/contextbridge/bridged/internal/wsbridge"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/bridged/config.toml)")
	flag.Parse()

	settings, err := config.LoadOrCreate(*configPath)
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	log := logging.New(logging.Options{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
		File:   settings.LogFile,
	})
	defer log.Sync()
	log.Info("config loaded", zap.String("path", settings.Path))

	store := page.NewStore()
	history := page.NewHistory(settings.HistoryLimit)
	summarizer := page.NewSummarizer(page.SummarizeOptions{})
	an := analyzer.New()
	instructions := instructionlog.NewStore(settings.InstructionLogPath)

	bridge := wsbridge.NewBridge(store, history, an, summarizer, wsbridge.Options{
		CheckOrigin:      func(r *http.Request) bool { return true },
		InstructionDelay: settings.InstructionPacing,
		HistoryLimit:     settings.HistoryLimit,
		Recorder:         instructions,
		Logger:           log.Named("wsbridge"),
	})

	local := provider.NewLocal(store, provider.Config{
		EnableScreenshots: settings.ScreenshotsEnabled,
		WhitelistedPages:  settings.ScreenshotWhitelist,
	}, log.Named("provider"))

	server := mcpserver.New(local, store, an, history, mcpserver.Options{
		Implementation: &mcp.Implementation{Name: "context-bridge", Version: "v1.0.0"},
		Instructions:   "Use context.get for the current page state and context.analyze for classification, issues, and the instructions that would be pushed to the frontend.",
	})
	mcpServer := server.MCPServer()

	sseHandler := mcp.NewSSEHandler(func(_ *http.Request) *mcp.Server { return mcpServer }, nil)
	streamHandler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server { return mcpServer }, nil)

	registry := session.NewRegistry()
	adminHandlers := &admin.Handlers{
		StartedAt:    time.Now(),
		Clients:      registry,
		Bridge:       bridge,
		Contexts:     store,
		Instructions: instructions,
		MaxIdle:      settings.ClientMaxIdle,
		ConfigPath:   settings.Path,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", bridge.HandleWS)
	mux.Handle("/mcp/sse", httpx.RequireToken(settings.AgentToken)(trackSSE(registry, sseHandler)))
	mux.Handle("/mcp/stream", httpx.RequireToken(settings.AgentToken)(trackStreamable(registry, streamHandler)))

	apiHandlers := &api.Handlers{
		Store:      store,
		Analyzer:   an,
		Summarizer: summarizer,
		Bridge:     bridge,
		Log:        log.Named("api"),
	}
	apiHandlers.Register(mux, httpx.RequireToken(settings.AgentToken))

	adminMux := http.NewServeMux()
	adminHandlers.Register(adminMux)
	mux.Handle("/admin/", httpx.RequireToken(settings.AdminToken)(adminMux))

	httpServer := &http.Server{
		Addr:    settings.DaemonAddr,
		Handler: httpx.RequestLogger(log.Named("http"))(mux),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("bridge daemon listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func trackSSE(reg *session.Registry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := clientInfoFromRequest(r, "sse")
		clientID := ensureClient(reg, w, r, info)
		if clientID != "" {
			go func() {
				<-r.Context().Done()
				reg.Unregister(clientID)
			}()
		}
		next.ServeHTTP(w, r)
	})
}

func trackStreamable(reg *session.Registry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := clientInfoFromRequest(r, "streamable")
		if r.Method == http.MethodGet {
			clientID := ensureClient(reg, w, r, info)
			if clientID != "" {
				go func() {
					<-r.Context().Done()
					reg.Unregister(clientID)
				}()
			}
			next.ServeHTTP(w, r)
			return
		}
		if clientID := clientIDFromRequest(r); clientID != "" {
			reg.Touch(clientID, info)
			reg.NoteToolCall(clientID)
		}
		next.ServeHTTP(w, r)
	})
}

func ensureClient(reg *session.Registry, w http.ResponseWriter, r *http.Request, info session.ClientInfo) string {
	clientID := clientIDFromRequest(r)
	if clientID == "" {
		clientID = reg.Register("", info)
		w.Header().Set("X-Assigned-Client-Id", clientID)
		return clientID
	}
	reg.Touch(clientID, info)
	return clientID
}

func clientInfoFromRequest(r *http.Request, transport string) session.ClientInfo {
	return session.ClientInfo{
		Name:       r.Header.Get("X-Client-Name"),
		Transport:  transport,
		RemoteAddr: httpx.ClientIP(r),
		UserAgent:  r.UserAgent(),
	}
}

func clientIDFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Client-Id"); v != "" {
		return v
	}
	if v := r.Header.Get("X-MCP-Client-Id"); v != "" {
		return v
	}
	return ""
}
