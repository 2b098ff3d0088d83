// Package admin serves the operator endpoints used by bridge-tui and
// scripts: daemon status, connected clients and sessions, the instruction
// log, and live config editing.
package admin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/contextbridge/bridged/internal/config"
	"github.com/contextbridge/bridged/internal/httpx"
	"github.com/contextbridge/bridged/internal/instructionlog"
	"github.com/contextbridge/bridged/internal/session"
	"github.com/contextbridge/bridged/internal/wsbridge"
)

// Status is the daemon health summary.
type Status struct {
	Uptime           string `json:"uptime"`
	AgentClients     int    `json:"agent_clients"`
	FrontendSessions int    `json:"frontend_sessions"`
	StoredContexts   int    `json:"stored_contexts"`
	InstructionsSent int    `json:"instructions_sent"`
}

// ContextCounter decouples the handlers from the page store.
type ContextCounter interface {
	ContextCount() int
}

type Handlers struct {
	StartedAt    time.Time
	Clients      *session.Registry
	Bridge       *wsbridge.Bridge
	Contexts     ContextCounter
	Instructions *instructionlog.Store
	MaxIdle      time.Duration
	ConfigPath   string
}

// Register mounts every admin route on mux. Callers wrap mux with auth.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/status", h.StatusHandler)
	mux.HandleFunc("/admin/clients", h.ClientsList)
	mux.HandleFunc("/admin/clients/disconnect", h.DisconnectClient)
	mux.HandleFunc("/admin/sessions", h.SessionsList)
	mux.HandleFunc("/admin/sessions/disconnect", h.DisconnectSession)
	mux.HandleFunc("/admin/instructions", h.InstructionsList)
	mux.HandleFunc("/admin/config", h.Config)
}

func (h *Handlers) StatusHandler(w http.ResponseWriter, _ *http.Request) {
	h.prune()
	resp := Status{
		Uptime:           time.Since(h.StartedAt).String(),
		AgentClients:     h.Clients.Count(),
		FrontendSessions: h.Bridge.Count(),
	}
	if h.Contexts != nil {
		resp.StoredContexts = h.Contexts.ContextCount()
	}
	if h.Instructions != nil {
		resp.InstructionsSent = h.Instructions.Len()
	}
	httpx.WriteJSON(w, resp)
}

func (h *Handlers) ClientsList(w http.ResponseWriter, _ *http.Request) {
	h.prune()
	httpx.WriteJSON(w, h.Clients.List())
}

func (h *Handlers) SessionsList(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, h.Bridge.ListSessions())
}

// InstructionsList returns recent instruction records; ?session= filters to
// one session, ?limit= caps the unfiltered listing.
func (h *Handlers) InstructionsList(w http.ResponseWriter, r *http.Request) {
	if h.Instructions == nil {
		httpx.WriteJSON(w, []instructionlog.Record{})
		return
	}
	if id := strings.TrimSpace(r.URL.Query().Get("session")); id != "" {
		httpx.WriteJSON(w, h.Instructions.BySession(id))
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	httpx.WriteJSON(w, h.Instructions.Recent(limit))
}

func (h *Handlers) DisconnectClient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	h.Clients.Unregister(id)
	httpx.WriteJSON(w, map[string]any{"ok": true, "id": id})
}

func (h *Handlers) DisconnectSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	if err := h.Bridge.DisconnectSession(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	httpx.WriteJSON(w, map[string]any{"ok": true, "id": id})
}

// ConfigPayload is the wire form of the editable settings. Durations travel
// as strings so the TUI can round-trip what the operator typed.
type ConfigPayload struct {
	Path                string   `json:"path,omitempty"`
	DaemonAddr          string   `json:"daemon_addr"`
	AgentToken          string   `json:"agent_token"`
	AdminToken          string   `json:"admin_token"`
	ClientMaxIdle       string   `json:"client_max_idle"`
	FrontendBaseURL     string   `json:"frontend_base_url"`
	FrontendToken       string   `json:"frontend_token"`
	FrontendTimeout     string   `json:"frontend_timeout"`
	ScreenshotsEnabled  bool     `json:"screenshots_enabled"`
	ScreenshotWhitelist []string `json:"screenshot_whitelist"`
	HistoryLimit        int      `json:"history_limit"`
	InstructionPacing   string   `json:"instruction_pacing"`
	AdminBaseURL        string   `json:"admin_base_url"`
	TUIRefreshInterval  string   `json:"tui_refresh_interval"`
}

func (h *Handlers) Config(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := config.LoadOrCreate(h.ConfigPath)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, payloadFromSettings(settings))

	case http.MethodPut:
		var payload ConfigPayload
		if err := httpx.DecodeJSON(r.Body, &payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		next, err := settingsFromPayload(payload)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if next.Path == "" {
			next.Path = h.ConfigPath
		}
		saved, err := config.Save(next)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, payloadFromSettings(saved))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func payloadFromSettings(settings config.Settings) ConfigPayload {
	return ConfigPayload{
		Path:                settings.Path,
		DaemonAddr:          settings.DaemonAddr,
		AgentToken:          settings.AgentToken,
		AdminToken:          settings.AdminToken,
		ClientMaxIdle:       settings.ClientMaxIdle.String(),
		FrontendBaseURL:     settings.FrontendBaseURL,
		FrontendToken:       settings.FrontendToken,
		FrontendTimeout:     settings.FrontendTimeout.String(),
		ScreenshotsEnabled:  settings.ScreenshotsEnabled,
		ScreenshotWhitelist: settings.ScreenshotWhitelist,
		HistoryLimit:        settings.HistoryLimit,
		InstructionPacing:   settings.InstructionPacing.String(),
		AdminBaseURL:        settings.AdminBaseURL,
		TUIRefreshInterval:  settings.TUIRefreshInterval.String(),
	}
}

func settingsFromPayload(payload ConfigPayload) (config.Settings, error) {
	next := config.Settings{
		Path:                strings.TrimSpace(payload.Path),
		DaemonAddr:          strings.TrimSpace(payload.DaemonAddr),
		AgentToken:          strings.TrimSpace(payload.AgentToken),
		AdminToken:          strings.TrimSpace(payload.AdminToken),
		FrontendBaseURL:     strings.TrimSpace(payload.FrontendBaseURL),
		FrontendToken:       strings.TrimSpace(payload.FrontendToken),
		ScreenshotsEnabled:  payload.ScreenshotsEnabled,
		ScreenshotWhitelist: payload.ScreenshotWhitelist,
		HistoryLimit:        payload.HistoryLimit,
		AdminBaseURL:        strings.TrimSpace(payload.AdminBaseURL),
	}
	var err error
	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"client_max_idle", payload.ClientMaxIdle, &next.ClientMaxIdle},
		{"frontend_timeout", payload.FrontendTimeout, &next.FrontendTimeout},
		{"instruction_pacing", payload.InstructionPacing, &next.InstructionPacing},
		{"tui_refresh_interval", payload.TUIRefreshInterval, &next.TUIRefreshInterval},
	}
	for _, d := range durations {
		raw := strings.TrimSpace(d.raw)
		if raw == "" {
			continue
		}
		if *d.dst, err = time.ParseDuration(raw); err != nil {
			return config.Settings{}, &badDurationError{name: d.name}
		}
	}
	return next, nil
}

type badDurationError struct{ name string }

func (e *badDurationError) Error() string { return "invalid " + e.name }

func (h *Handlers) prune() {
	if h.MaxIdle > 0 {
		h.Clients.Prune(h.MaxIdle)
	}
}
