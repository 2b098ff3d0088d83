// Package provider defines the transport-agnostic contract for pulling page
// context and screenshots out of a frontend the backend does not control.
package provider

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/contextbridge/bridged/internal/page"
)

// Error classes callers can branch on. Configuration and permission
// failures are distinct from transport failures so policy problems are not
// mistaken for connectivity ones.
var (
	ErrNoBaseURL        = errors.New("provider: base url not configured")
	ErrNoTargetURL      = errors.New("provider: no url given and no last known url")
	ErrScreenshotDenied = errors.New("provider: screenshots not allowed")
	ErrBadPayload       = errors.New("provider: malformed response payload")
	ErrNoScreenshot     = errors.New("provider: no screenshot stored")
)

// Clip is a pixel rectangle limiting a capture.
type Clip struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScreenshotOptions controls a capture request. Quality is in [0,1].
type ScreenshotOptions struct {
	Format   string  `json:"format"`
	Quality  float64 `json:"quality"`
	FullPage bool    `json:"fullPage"`
	Clip     *Clip   `json:"clip,omitempty"`
}

// DefaultScreenshotOptions returns the capture defaults used when a caller
// passes none.
func DefaultScreenshotOptions() ScreenshotOptions {
	return ScreenshotOptions{Format: "png", Quality: 0.8}
}

// Config configures one provider instance. It is immutable after
// construction and owned exclusively by that instance.
//
// WhitelistedPages entries are plain substrings: a URL is allowed when it
// contains at least one entry. This is deliberately weaker than anchored or
// pattern matching; known limitation, kept until product intent says
// otherwise.
type Config struct {
	BaseURL            string
	AuthHeaders        map[string]string
	WhitelistedPages   []string
	EnableScreenshots  bool
	ScreenshotDefaults ScreenshotOptions
	Timeout            time.Duration
}

// Response pairs a context snapshot with its optional screenshot.
type Response struct {
	Context    page.Snapshot `json:"context"`
	Screenshot string        `json:"screenshot,omitempty"`
}

// Provider is the capability set a context source offers, polymorphic over
// transport. A url argument of "" means "whatever the source considers
// current".
type Provider interface {
	// CurrentContext returns the most recent known snapshot, optionally
	// targeting a URL.
	CurrentContext(ctx context.Context, url string) (page.Snapshot, error)

	// Screenshot returns a base64-encoded capture for the url, or the
	// provider's last known URL when url is "". Permission is checked
	// before any request is issued.
	Screenshot(ctx context.Context, url string, opts *ScreenshotOptions) (string, error)

	// ContextWithScreenshot fetches context and, best effort, a
	// screenshot. See WithScreenshot for the partial-failure contract.
	ContextWithScreenshot(ctx context.Context, url string, opts *ScreenshotOptions) (Response, error)

	// ScreenshotAllowed reports whether policy permits capturing the url.
	ScreenshotAllowed(url string) bool

	// Cleanup releases transport resources. Safe to call repeatedly.
	Cleanup()
}

// WithScreenshot composes the two primitive fetches. Context is the primary
// deliverable: a screenshot failure is logged and the result simply carries
// no screenshot, it never fails the call. Implementations delegate their
// ContextWithScreenshot here.
func WithScreenshot(ctx context.Context, p Provider, url string, opts *ScreenshotOptions, log *zap.Logger) (Response, error) {
	snap, err := p.CurrentContext(ctx, url)
	if err != nil {
		return Response{}, err
	}
	out := Response{Context: snap}

	shot, err := p.Screenshot(ctx, url, opts)
	if err != nil {
		if log != nil {
			log.Warn("screenshot capture failed, returning context only",
				zap.String("url", url), zap.Error(err))
		}
		return out, nil
	}
	out.Screenshot = shot
	return out, nil
}
