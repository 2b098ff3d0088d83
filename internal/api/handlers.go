// Package api exposes the daemon's HTTP surface: the frontend-facing
// context endpoints mirroring the provider wire contract, and the
// token-gated agent endpoints serving analyzed context back out.
package api

import (
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/contextbridge/bridged/internal/analyzer"
	"github.com/contextbridge/bridged/internal/httpx"
	"github.com/contextbridge/bridged/internal/page"
	"github.com/contextbridge/bridged/internal/protocol"
	"github.com/contextbridge/bridged/internal/provider"
	"github.com/contextbridge/bridged/internal/wsbridge"
)

type Handlers struct {
	Store      *page.Store
	Analyzer   *analyzer.Analyzer
	Summarizer *page.Summarizer
	Bridge     *wsbridge.Bridge
	Log        *zap.Logger
}

// Register mounts the frontend surface on mux and the agent surface behind
// the given middleware chain.
func (h *Handlers) Register(mux *http.ServeMux, agentAuth func(http.Handler) http.Handler) {
	mux.HandleFunc("/current-context", h.CurrentContext)
	mux.HandleFunc("/screenshot", h.IngestScreenshot)

	agent := http.NewServeMux()
	agent.HandleFunc("/agent/context", h.AgentContext)
	agent.HandleFunc("/agent/screenshot", h.AgentScreenshot)
	agent.HandleFunc("/agent/context-with-screenshot", h.AgentContextWithScreenshot)
	agent.HandleFunc("/agent/analysis", h.AgentAnalysis)
	agent.HandleFunc("/agent/behavior", h.AgentBehavior)
	mux.Handle("/agent/", agentAuth(agent))
}

// CurrentContext serves the stored snapshot on GET, matching the shape the
// REST provider polls for, and ingests a pushed snapshot on POST. GET never
// 404s: a placeholder snapshot stands in until a frontend reports.
func (h *Handlers) CurrentContext(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		url := r.URL.Query().Get("url")
		snap, ok := h.Store.Context(url)
		if !ok {
			snap = page.Placeholder(url)
		}
		httpx.WriteJSON(w, snap)

	case http.MethodPost:
		snap, err := h.ingestSnapshot(r)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httpx.WriteJSON(w, map[string]any{"status": "success", "url": snap.URL})

	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handlers) ingestSnapshot(r *http.Request) (page.Snapshot, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		return page.Snapshot{}, err
	}

	snap, err := page.ParseSnapshot(raw)
	if err != nil {
		return page.Snapshot{}, err
	}
	if h.Summarizer != nil {
		snap = h.Summarizer.Summarize(snap)
	}
	h.Store.PutContext(snap)
	h.log().Info("context ingested over http", zap.String("url", snap.URL))
	return snap, nil
}

type screenshotIngest struct {
	URL        string `json:"url"`
	Screenshot string `json:"screenshot"`
}

// IngestScreenshot accepts a pushed capture and stores it keyed by URL.
func (h *Handlers) IngestScreenshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload screenshotIngest
	if err := httpx.DecodeJSON(r.Body, &payload); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Screenshot == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing screenshot data")
		return
	}
	url := payload.URL
	if url == "" {
		url = "unknown"
	}
	h.Store.PutScreenshot(url, payload.Screenshot)
	httpx.WriteJSON(w, map[string]any{"status": "success", "url": url, "size": len(payload.Screenshot)})
}

// AgentContext returns the stored snapshot for ?url=, or the default one.
func (h *Handlers) AgentContext(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	snap, ok := h.Store.Context(url)
	if !ok {
		snap = page.Placeholder(url)
	}
	httpx.WriteJSON(w, snap)
}

// AgentScreenshot returns the stored capture for ?url=. Unlike context,
// screenshots have no placeholder; absence is a 404.
func (h *Handlers) AgentScreenshot(w http.ResponseWriter, r *http.Request) {
	shot, ok := h.Store.Screenshot(r.URL.Query().Get("url"))
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "no screenshot stored")
		return
	}
	httpx.WriteJSON(w, map[string]any{"screenshot": shot, "size": len(shot)})
}

// AgentContextWithScreenshot pairs the snapshot with its capture when one
// exists. A missing screenshot does not fail the request.
func (h *Handlers) AgentContextWithScreenshot(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	snap, ok := h.Store.Context(url)
	if !ok {
		snap = page.Placeholder(url)
	}
	resp := provider.Response{Context: snap}
	if shot, ok := h.Store.Screenshot(url); ok {
		resp.Screenshot = shot
	}
	httpx.WriteJSON(w, resp)
}

type analysisResponse struct {
	URL          string                 `json:"url"`
	Analysis     analyzer.Analysis      `json:"analysis"`
	Instructions []protocol.Instruction `json:"instructions"`
}

// AgentAnalysis runs classification and instruction generation over the
// stored snapshot for ?url= and returns both.
func (h *Handlers) AgentAnalysis(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	snap, ok := h.Store.Context(url)
	if !ok {
		snap = page.Placeholder(url)
	}
	analysis := h.Analyzer.Analyze(snap)
	httpx.WriteJSON(w, analysisResponse{
		URL:          snap.URL,
		Analysis:     analysis,
		Instructions: h.Analyzer.Instructions(snap, analysis),
	})
}

// AgentBehavior summarizes a live session's history. ?session= is required.
func (h *Handlers) AgentBehavior(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("session"))
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing session")
		return
	}
	trail := h.Bridge.History().Recent(id)
	if len(trail) == 0 {
		httpx.WriteError(w, http.StatusNotFound, "no history for session")
		return
	}
	httpx.WriteJSON(w, h.Analyzer.Behavior(trail))
}

func (h *Handlers) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
