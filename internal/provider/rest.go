package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/contextbridge/bridged/internal/page"
)

const (
	contextEndpoint    = "/current-context"
	screenshotEndpoint = "/screenshot"

	defaultTimeout  = 30 * time.Second
	maxResponseSize = 32 << 20 // screenshots arrive base64-encoded
)

// REST implements Provider over request/response HTTP calls to a configured
// base URL. One lazily created http.Client is reused per instance and
// recreated after Cleanup. Overlapping calls on one instance share that
// client without internal ordering; callers needing ordering serialize
// externally.
type REST struct {
	cfg Config
	log *zap.Logger

	mu           sync.Mutex
	client       *http.Client
	lastKnownURL string
}

func NewREST(cfg Config, log *zap.Logger) *REST {
	if log == nil {
		log = zap.NewNop()
	}
	return &REST{cfg: cfg, log: log}
}

func (p *REST) httpClient() *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		timeout := p.cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		p.client = &http.Client{Timeout: timeout}
	}
	return p.client
}

func (p *REST) setLastKnownURL(u string) {
	if u == "" {
		return
	}
	p.mu.Lock()
	p.lastKnownURL = u
	p.mu.Unlock()
}

// LastKnownURL returns the URL most recently echoed by the source.
func (p *REST) LastKnownURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastKnownURL
}

// CurrentContext fetches the source's current snapshot. The response body's
// own url field is authoritative for the last-known URL, not the argument.
func (p *REST) CurrentContext(ctx context.Context, target string) (page.Snapshot, error) {
	if p.cfg.BaseURL == "" {
		return page.Snapshot{}, ErrNoBaseURL
	}

	endpoint := joinURL(p.cfg.BaseURL, contextEndpoint)
	if target != "" {
		endpoint += "?url=" + url.QueryEscape(target)
		p.setLastKnownURL(target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return page.Snapshot{}, fmt.Errorf("build context request: %w", err)
	}
	p.applyHeaders(req)

	body, err := p.do(req)
	if err != nil {
		return page.Snapshot{}, fmt.Errorf("fetch context: %w", err)
	}

	snap, err := page.ParseSnapshot(body)
	if err != nil {
		return page.Snapshot{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	p.setLastKnownURL(snap.URL)
	return snap, nil
}

type screenshotRequest struct {
	URL     string            `json:"url"`
	Options ScreenshotOptions `json:"options"`
}

type screenshotResponse struct {
	Screenshot *string `json:"screenshot"`
}

// Screenshot captures the target URL, falling back to the last known URL
// when none is given. Policy is consulted before any request goes out.
func (p *REST) Screenshot(ctx context.Context, target string, opts *ScreenshotOptions) (string, error) {
	if p.cfg.BaseURL == "" {
		return "", ErrNoBaseURL
	}
	if target == "" {
		target = p.LastKnownURL()
	}
	if target == "" {
		return "", ErrNoTargetURL
	}
	if !p.ScreenshotAllowed(target) {
		return "", fmt.Errorf("%w: %s", ErrScreenshotDenied, target)
	}

	payload, err := json.Marshal(screenshotRequest{
		URL:     target,
		Options: p.resolveOptions(opts),
	})
	if err != nil {
		return "", fmt.Errorf("encode screenshot request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		joinURL(p.cfg.BaseURL, screenshotEndpoint), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build screenshot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.applyHeaders(req)

	body, err := p.do(req)
	if err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}

	var decoded screenshotResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if decoded.Screenshot == nil {
		return "", fmt.Errorf("%w: no screenshot data in response", ErrBadPayload)
	}
	return *decoded.Screenshot, nil
}

// ContextWithScreenshot delegates to the composed default.
func (p *REST) ContextWithScreenshot(ctx context.Context, target string, opts *ScreenshotOptions) (Response, error) {
	return WithScreenshot(ctx, p, target, opts, p.log)
}

// ScreenshotAllowed applies the configured policy: disabled wins, an empty
// whitelist allows everything, otherwise substring containment decides.
func (p *REST) ScreenshotAllowed(target string) bool {
	if !p.cfg.EnableScreenshots {
		return false
	}
	if len(p.cfg.WhitelistedPages) == 0 {
		return true
	}
	for _, pattern := range p.cfg.WhitelistedPages {
		if strings.Contains(target, pattern) {
			return true
		}
	}
	return false
}

// Cleanup drops the reused client. The next call recreates it.
func (p *REST) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.CloseIdleConnections()
		p.client = nil
	}
}

func (p *REST) resolveOptions(opts *ScreenshotOptions) ScreenshotOptions {
	if opts != nil {
		return *opts
	}
	if p.cfg.ScreenshotDefaults != (ScreenshotOptions{}) {
		return p.cfg.ScreenshotDefaults
	}
	return DefaultScreenshotOptions()
}

func (p *REST) applyHeaders(req *http.Request) {
	for key, value := range p.cfg.AuthHeaders {
		req.Header.Set(key, value)
	}
}

func (p *REST) do(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// FetchContext composes a throwaway provider, performs one context fetch,
// and always releases the transport. Intended for one-shot callers (MCP
// tool handlers, scripts) that do not manage provider lifetime.
func FetchContext(ctx context.Context, baseURL, target string, authHeaders map[string]string) (page.Snapshot, error) {
	p := NewREST(Config{BaseURL: baseURL, AuthHeaders: authHeaders}, nil)
	defer p.Cleanup()
	return p.CurrentContext(ctx, target)
}

// FetchScreenshot is the one-shot counterpart for screenshots.
func FetchScreenshot(ctx context.Context, baseURL, target string, authHeaders map[string]string, opts *ScreenshotOptions, whitelist []string) (string, error) {
	p := NewREST(Config{
		BaseURL:           baseURL,
		AuthHeaders:       authHeaders,
		EnableScreenshots: true,
		WhitelistedPages:  whitelist,
	}, nil)
	defer p.Cleanup()
	return p.Screenshot(ctx, target, opts)
}
