package provider

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/contextbridge/bridged/internal/page"
)

// Local implements Provider over an in-process store fed by pushed
// captures. It never reaches out to a frontend: context reads fall back to
// the placeholder, and screenshots exist only if one was pushed.
type Local struct {
	store *page.Store
	cfg   Config
	log   *zap.Logger
}

func NewLocal(store *page.Store, cfg Config, log *zap.Logger) *Local {
	if store == nil {
		store = page.NewStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Local{store: store, cfg: cfg, log: log}
}

func (p *Local) CurrentContext(_ context.Context, url string) (page.Snapshot, error) {
	snap, ok := p.store.Context(url)
	if !ok {
		return page.Placeholder(url), nil
	}
	return snap, nil
}

func (p *Local) Screenshot(_ context.Context, url string, _ *ScreenshotOptions) (string, error) {
	if !p.ScreenshotAllowed(url) {
		return "", fmt.Errorf("%w: %s", ErrScreenshotDenied, url)
	}
	shot, ok := p.store.Screenshot(url)
	if !ok {
		return "", ErrNoScreenshot
	}
	return shot, nil
}

func (p *Local) ContextWithScreenshot(ctx context.Context, url string, opts *ScreenshotOptions) (Response, error) {
	return WithScreenshot(ctx, p, url, opts, p.log)
}

func (p *Local) ScreenshotAllowed(url string) bool {
	if !p.cfg.EnableScreenshots {
		return false
	}
	if len(p.cfg.WhitelistedPages) == 0 {
		return true
	}
	for _, pattern := range p.cfg.WhitelistedPages {
		if strings.Contains(url, pattern) {
			return true
		}
	}
	return false
}

func (p *Local) Cleanup() {}
