// Package mcpserver exposes the context bridge to MCP clients: tools to
// fetch and analyze page context, and resources over the stored snapshots.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/contextbridge/bridged/internal/analyzer"
	"github.com/contextbridge/bridged/internal/page"
	"github.com/contextbridge/bridged/internal/protocol"
	"github.com/contextbridge/bridged/internal/provider"
)

type Options struct {
	Implementation *mcp.Implementation
	Instructions   string
}

// Server wires the MCP tool surface to a context provider. The store caches
// fetched snapshots so resources work without re-fetching; history is
// optional and only present when running inside the daemon.
type Server struct {
	mcpServer *mcp.Server
	provider  provider.Provider
	store     *page.Store
	analyzer  *analyzer.Analyzer
	history   *page.History
}

func New(p provider.Provider, store *page.Store, an *analyzer.Analyzer, history *page.History, opts Options) *Server {
	impl := opts.Implementation
	if impl == nil {
		impl = &mcp.Implementation{Name: "context-bridge", Version: "v1.0.0"}
	}
	if store == nil {
		store = page.NewStore()
	}
	if an == nil {
		an = analyzer.New()
	}

	server := mcp.NewServer(impl, &mcp.ServerOptions{Instructions: opts.Instructions})
	s := &Server{
		mcpServer: server,
		provider:  p,
		store:     store,
		analyzer:  an,
		history:   history,
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context.get",
		Description: "Fetch the current page context (DOM, forms, viewport) from the frontend.",
	}, s.getContext)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context.screenshot",
		Description: "Capture a screenshot of the current or a specific page, subject to policy.",
	}, s.screenshot)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context.with_screenshot",
		Description: "Fetch page context together with a best-effort screenshot.",
	}, s.withScreenshot)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context.analyze",
		Description: "Classify the current page and generate issues, suggestions, and instructions.",
	}, s.analyze)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context.behavior",
		Description: "Summarize a frontend session's navigation behavior from its snapshot history.",
	}, s.behavior)

	server.AddResource(&mcp.Resource{
		Name:        "context_latest",
		Description: "Read the most recent stored page context.",
		URI:         "context://latest",
		MIMEType:    "application/json",
	}, s.readLatest)

	server.AddResource(&mcp.Resource{
		Name:        "screenshot_latest",
		Description: "Read the most recent stored screenshot (base64).",
		URI:         "context://screenshot/latest",
		MIMEType:    "application/json",
	}, s.readLatestScreenshot)

	return s
}

func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

type GetContextInput struct {
	URL string `json:"url,omitempty" jsonschema:"page URL to target; omit for whatever the frontend considers current"`
}

type GetContextOutput struct {
	URL       string `json:"url" jsonschema:"page URL"`
	Title     string `json:"title,omitempty" jsonschema:"page title"`
	Text      string `json:"text,omitempty" jsonschema:"visible page text"`
	Forms     int    `json:"forms" jsonschema:"number of forms on the page"`
	Inputs    int    `json:"inputs" jsonschema:"number of inputs on the page"`
	Timestamp int64  `json:"timestamp" jsonschema:"capture time in epoch milliseconds"`
}

func (s *Server) getContext(ctx context.Context, _ *mcp.CallToolRequest, input GetContextInput) (*mcp.CallToolResult, GetContextOutput, error) {
	snap, err := s.fetch(ctx, input.URL)
	if err != nil {
		return nil, GetContextOutput{}, err
	}
	out := GetContextOutput{URL: snap.URL, Title: snap.Title, Timestamp: snap.Timestamp}
	if snap.DOM != nil {
		out.Text = snap.DOM.Text
		out.Forms = len(snap.DOM.Forms)
		out.Inputs = len(snap.DOM.Inputs)
	}
	return nil, out, nil
}

type ScreenshotInput struct {
	URL      string  `json:"url,omitempty" jsonschema:"page URL to capture; omit for the last known page"`
	Format   string  `json:"format,omitempty" jsonschema:"png, jpeg, or webp"`
	Quality  float64 `json:"quality,omitempty" jsonschema:"capture quality in [0,1]"`
	FullPage bool    `json:"fullPage,omitempty" jsonschema:"capture the full page instead of the viewport"`
}

type ScreenshotOutput struct {
	URL        string `json:"url,omitempty" jsonschema:"page URL that was captured"`
	Screenshot string `json:"screenshot" jsonschema:"base64-encoded image data"`
	Size       int    `json:"size" jsonschema:"encoded size in bytes"`
}

func (s *Server) screenshot(ctx context.Context, _ *mcp.CallToolRequest, input ScreenshotInput) (*mcp.CallToolResult, ScreenshotOutput, error) {
	opts := screenshotOptions(input)
	shot, err := s.provider.Screenshot(ctx, input.URL, opts)
	if err != nil {
		return nil, ScreenshotOutput{}, err
	}
	s.store.PutScreenshot(input.URL, shot)
	return nil, ScreenshotOutput{URL: input.URL, Screenshot: shot, Size: len(shot)}, nil
}

type WithScreenshotOutput struct {
	Context    GetContextOutput `json:"context" jsonschema:"page context summary"`
	Screenshot string           `json:"screenshot,omitempty" jsonschema:"base64 image; empty when capture failed or was denied"`
}

func (s *Server) withScreenshot(ctx context.Context, _ *mcp.CallToolRequest, input ScreenshotInput) (*mcp.CallToolResult, WithScreenshotOutput, error) {
	resp, err := s.provider.ContextWithScreenshot(ctx, input.URL, screenshotOptions(input))
	if err != nil {
		return nil, WithScreenshotOutput{}, err
	}
	s.store.PutContext(resp.Context)
	if resp.Screenshot != "" {
		s.store.PutScreenshot(resp.Context.URL, resp.Screenshot)
	}
	out := WithScreenshotOutput{
		Context: GetContextOutput{
			URL:       resp.Context.URL,
			Title:     resp.Context.Title,
			Timestamp: resp.Context.Timestamp,
		},
		Screenshot: resp.Screenshot,
	}
	if resp.Context.DOM != nil {
		out.Context.Text = resp.Context.DOM.Text
		out.Context.Forms = len(resp.Context.DOM.Forms)
		out.Context.Inputs = len(resp.Context.DOM.Inputs)
	}
	return nil, out, nil
}

type AnalyzeInput struct {
	URL string `json:"url,omitempty" jsonschema:"page URL to analyze; omit for the current page"`
}

type AnalyzeOutput struct {
	URL          string                 `json:"url" jsonschema:"analyzed page URL"`
	Analysis     analyzer.Analysis      `json:"analysis" jsonschema:"classification, issues, suggestions, confidence"`
	Instructions []protocol.Instruction `json:"instructions" jsonschema:"instructions that would be pushed to the frontend"`
}

func (s *Server) analyze(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, AnalyzeOutput, error) {
	snap, err := s.fetch(ctx, input.URL)
	if err != nil {
		// A stored snapshot still allows offline analysis.
		stored, ok := s.store.Context(input.URL)
		if !ok {
			return nil, AnalyzeOutput{}, err
		}
		snap = stored
	}
	analysis := s.analyzer.Analyze(snap)
	return nil, AnalyzeOutput{
		URL:          snap.URL,
		Analysis:     analysis,
		Instructions: s.analyzer.Instructions(snap, analysis),
	}, nil
}

type BehaviorInput struct {
	SessionID string `json:"sessionId" jsonschema:"frontend session id whose history to summarize"`
}

func (s *Server) behavior(_ context.Context, _ *mcp.CallToolRequest, input BehaviorInput) (*mcp.CallToolResult, analyzer.Behavior, error) {
	if s.history == nil {
		return nil, analyzer.Behavior{}, errors.New("session history not available on this transport")
	}
	if input.SessionID == "" {
		return nil, analyzer.Behavior{}, errors.New("sessionId is required")
	}
	trail := s.history.Recent(input.SessionID)
	if len(trail) == 0 {
		return nil, analyzer.Behavior{}, errors.New("no history for session")
	}
	return nil, s.analyzer.Behavior(trail), nil
}

func (s *Server) fetch(ctx context.Context, url string) (page.Snapshot, error) {
	snap, err := s.provider.CurrentContext(ctx, url)
	if err != nil {
		return page.Snapshot{}, err
	}
	s.store.PutContext(snap)
	return snap, nil
}

func screenshotOptions(input ScreenshotInput) *provider.ScreenshotOptions {
	if input.Format == "" && input.Quality == 0 && !input.FullPage {
		return nil
	}
	opts := provider.DefaultScreenshotOptions()
	if input.Format != "" {
		opts.Format = input.Format
	}
	if input.Quality > 0 {
		opts.Quality = input.Quality
	}
	opts.FullPage = input.FullPage
	return &opts
}

func (s *Server) readLatest(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if req == nil || req.Params == nil {
		return nil, errors.New("missing resource params")
	}
	snap, ok := s.store.Context("")
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

func (s *Server) readLatestScreenshot(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if req == nil || req.Params == nil {
		return nil, errors.New("missing resource params")
	}
	shot, ok := s.store.Screenshot("")
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	data, err := json.Marshal(map[string]any{"screenshot": shot, "size": len(shot)})
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
