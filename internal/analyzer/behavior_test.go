package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contextbridge/bridged/internal/page"
)

func TestBehaviorEmptyTrail(t *testing.T) {
	a := New()
	require.Zero(t, a.Behavior(nil))
}

func TestBehaviorCountsAndDwell(t *testing.T) {
	a := New()
	trail := []page.Snapshot{
		{URL: "https://a.test/home", Timestamp: 1000},
		{URL: "https://a.test/pricing", Timestamp: 4000},
		{URL: "https://a.test/home", Timestamp: 9000},
		{URL: "https://a.test/docs", Timestamp: 10_000},
	}
	got := a.Behavior(trail)
	require.Equal(t, 3, got.PagesVisited)
	require.Equal(t, []string{"content"}, got.PageTypes)
	// home: 3000+1000, pricing: 5000 -> (4000+5000)/2 urls with dwell
	require.InDelta(t, 4500.0, got.AverageTimePerPage, 0.01)
	require.Equal(t, PageContent, got.MostVisitedPageType)
}

func TestBehaviorTieBreakIsLexicographic(t *testing.T) {
	a := New()
	trail := []page.Snapshot{
		{URL: "https://a.test/cart", Timestamp: 1},
		{URL: "https://a.test/admin", Timestamp: 2},
	}
	got := a.Behavior(trail)
	require.Equal(t, PageCheckout, got.MostVisitedPageType, "checkout < dashboard on ties")
}

func TestBehaviorSingleSnapshotHasNoPatterns(t *testing.T) {
	a := New()
	got := a.Behavior([]page.Snapshot{{URL: "https://a.test/500", Title: "error"}})
	require.Empty(t, got.Patterns)
}

func TestBehaviorFormAbandonment(t *testing.T) {
	a := New()
	trail := []page.Snapshot{
		{URL: "https://a.test/signup", Timestamp: 1, DOM: &page.DOM{
			Forms: []page.Form{{Fields: []page.Input{{Name: "email", Required: true}}}},
		}},
		{URL: "https://a.test/blog", Timestamp: 2},
	}
	require.Contains(t, a.Behavior(trail).Patterns, PatternFormAbandonment)
}

func TestBehaviorCheckoutAbandonment(t *testing.T) {
	a := New()
	abandoned := []page.Snapshot{
		{URL: "https://a.test/checkout", Timestamp: 1},
		{URL: "https://a.test/blog", Timestamp: 2},
	}
	require.Contains(t, a.Behavior(abandoned).Patterns, PatternCheckoutAbandonment)

	completed := []page.Snapshot{
		{URL: "https://a.test/checkout", Timestamp: 1},
		{URL: "https://a.test/order/thank-you", Timestamp: 2},
	}
	require.NotContains(t, a.Behavior(completed).Patterns, PatternCheckoutAbandonment)
}

func TestBehaviorErrorEncountered(t *testing.T) {
	a := New()
	trail := []page.Snapshot{
		{URL: "https://a.test/home", Timestamp: 1},
		{URL: "https://a.test/broken", Title: "404 not found", Timestamp: 2},
	}
	require.Contains(t, a.Behavior(trail).Patterns, PatternErrorEncountered)
}
