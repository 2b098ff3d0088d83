package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contextbridge/bridged/internal/page"
)

func TestLocalContextFallsBackToPlaceholder(t *testing.T) {
	p := NewLocal(page.NewStore(), Config{}, nil)

	snap, err := p.CurrentContext(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "No context received yet", snap.Title)
}

func TestLocalServesStoredContext(t *testing.T) {
	store := page.NewStore()
	store.PutContext(page.Snapshot{URL: "https://a.test", Title: "Stored"})
	p := NewLocal(store, Config{}, nil)

	snap, err := p.CurrentContext(context.Background(), "https://a.test")
	require.NoError(t, err)
	require.Equal(t, "Stored", snap.Title)
}

func TestLocalScreenshotPolicyAndAbsence(t *testing.T) {
	store := page.NewStore()
	denied := NewLocal(store, Config{}, nil)
	_, err := denied.Screenshot(context.Background(), "https://a.test", nil)
	require.ErrorIs(t, err, ErrScreenshotDenied)

	allowed := NewLocal(store, Config{EnableScreenshots: true}, nil)
	_, err = allowed.Screenshot(context.Background(), "https://a.test", nil)
	require.ErrorIs(t, err, ErrNoScreenshot)

	store.PutScreenshot("https://a.test", "aGVsbG8=")
	shot, err := allowed.Screenshot(context.Background(), "https://a.test", nil)
	require.NoError(t, err)
	require.Equal(t, "aGVsbG8=", shot)
}

func TestLocalWithScreenshotNeverFailsOnMissingShot(t *testing.T) {
	store := page.NewStore()
	store.PutContext(page.Snapshot{URL: "https://a.test", Title: "Page"})
	p := NewLocal(store, Config{EnableScreenshots: true}, nil)

	resp, err := p.ContextWithScreenshot(context.Background(), "https://a.test", nil)
	require.NoError(t, err)
	require.Equal(t, "Page", resp.Context.Title)
	require.Empty(t, resp.Screenshot)
}
