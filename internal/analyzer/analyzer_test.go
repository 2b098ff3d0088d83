package analyzer

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextbridge/bridged/internal/page"
	"github.com/contextbridge/bridged/internal/protocol"
)

func TestClassifyPriorityOrder(t *testing.T) {
	a := New()

	cases := []struct {
		name string
		snap page.Snapshot
		want PageType
	}{
		{"checkout url", page.Snapshot{URL: "https://shop.test/cart"}, PageCheckout},
		{"checkout url beats error title", page.Snapshot{URL: "https://shop.test/checkout", Title: "Error"}, PageCheckout},
		{"dashboard url", page.Snapshot{URL: "https://app.test/admin/users"}, PageDashboard},
		{"error title", page.Snapshot{URL: "https://a.test/x", Title: "404 Not Found"}, PageError},
		{"error text", page.Snapshot{URL: "https://a.test/x", DOM: &page.DOM{Text: "internal server error"}}, PageError},
		{"loading text", page.Snapshot{URL: "https://a.test/x", DOM: &page.DOM{Text: "Please wait..."}}, PageLoading},
		{"form page", page.Snapshot{URL: "https://a.test/signup", DOM: &page.DOM{Forms: []page.Form{{}}}}, PageForm},
		{"content fallback", page.Snapshot{URL: "https://a.test/blog"}, PageContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, a.Classify(tc.snap))
		})
	}
}

func TestIssuesNoDOM(t *testing.T) {
	a := New()
	require.Empty(t, a.Issues(page.Snapshot{URL: "https://a.test", Viewport: &page.Viewport{Width: 320}}))
}

func TestIssuesAllDetectorsFire(t *testing.T) {
	a := New()
	snap := page.Snapshot{
		URL: "https://a.test/form",
		DOM: &page.DOM{
			Text:   strings.Repeat("x", 50_001),
			Inputs: []page.Input{{Required: true}}, // empty, unlabeled
		},
		Viewport: &page.Viewport{Width: 375},
	}
	issues := a.Issues(snap)
	byType := map[IssueType]int{}
	for _, issue := range issues {
		byType[issue.Type]++
	}
	assert.Equal(t, 1, byType[IssueValidation])
	assert.Equal(t, 1, byType[IssueAccessibility])
	assert.Equal(t, 1, byType[IssuePerformance])
	assert.Equal(t, 1, byType[IssueUsability])
}

func TestConfidenceAlwaysInRange(t *testing.T) {
	a := New()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		snap := randomSnapshot(rng)
		got := a.Analyze(snap)
		require.GreaterOrEqual(t, got.Confidence, 0.0)
		require.LessOrEqual(t, got.Confidence, 1.0)
	}
}

func randomSnapshot(rng *rand.Rand) page.Snapshot {
	snap := page.Snapshot{
		URL:       fmt.Sprintf("https://a.test/p%d", rng.Intn(20)),
		Title:     []string{"", "Home", "Error", "Checkout", "Loading"}[rng.Intn(5)],
		Timestamp: rng.Int63(),
	}
	if rng.Intn(3) > 0 {
		dom := &page.DOM{Text: strings.Repeat("t", rng.Intn(60_000))}
		for i := rng.Intn(4); i > 0; i-- {
			dom.Inputs = append(dom.Inputs, page.Input{
				Name:     []string{"", "email"}[rng.Intn(2)],
				Value:    []string{"", "filled"}[rng.Intn(2)],
				Required: rng.Intn(2) == 0,
			})
		}
		if rng.Intn(2) == 0 {
			dom.Forms = []page.Form{{Fields: dom.Inputs}}
		}
		snap.DOM = dom
	}
	if rng.Intn(2) == 0 {
		snap.Viewport = &page.Viewport{Width: rng.Intn(2000), Height: rng.Intn(1200)}
	}
	return snap
}

func TestCheckoutScenario(t *testing.T) {
	a := New()
	snap := page.Snapshot{
		URL:   "https://shop.test/checkout/review",
		Title: "Review",
		DOM:   &page.DOM{},
	}
	analysis := a.Analyze(snap)
	require.Equal(t, PageCheckout, analysis.PageType)
	require.Equal(t, "purchasing", analysis.UserIntent)

	instructions := a.Instructions(snap, analysis)
	var reviews []protocol.Instruction
	for _, ins := range instructions {
		if msg, _ := ins.Data["message"].(string); strings.Contains(strings.ToLower(msg), "review your order") {
			reviews = append(reviews, ins)
		}
	}
	require.Len(t, reviews, 1)
	require.Equal(t, protocol.PriorityHigh, reviews[0].Priority)
	require.Equal(t, protocol.InstructionNotification, reviews[0].Type)
}

func TestSignupScenario(t *testing.T) {
	a := New()
	snap := page.Snapshot{
		URL: "https://a.test/signup",
		DOM: &page.DOM{
			Forms: []page.Form{{Fields: []page.Input{{Name: "email", Type: "text", Required: true}}}},
		},
	}
	analysis := a.Analyze(snap)
	require.Equal(t, PageForm, analysis.PageType)

	var validation []Issue
	for _, issue := range analysis.Issues {
		if issue.Type == IssueValidation {
			validation = append(validation, issue)
		}
	}
	require.Len(t, validation, 1)
	require.Equal(t, "[name='email']", validation[0].Element)

	var fixes []Suggestion
	for _, s := range analysis.Suggestions {
		if s.Action == "fix_validation" {
			fixes = append(fixes, s)
		}
	}
	require.Len(t, fixes, 1)

	instructions := a.Instructions(snap, analysis)
	highlights := 0
	aggregates := 0
	showErrors := 0
	for _, ins := range instructions {
		switch action, _ := ins.Data["action"].(string); action {
		case "highlight_field":
			highlights++
		case "show_error":
			showErrors++
			require.Equal(t, "[name='email']", ins.Data["selector"])
		}
		if msg, _ := ins.Data["message"].(string); strings.Contains(msg, "1 required field") {
			aggregates++
		}
	}
	require.Equal(t, 1, highlights)
	require.Equal(t, 1, aggregates)
	require.Equal(t, 1, showErrors)
}

func TestFieldInBothListsReportedTwice(t *testing.T) {
	a := New()
	field := page.Input{Name: "email", Type: "text", Required: true}
	snap := page.Snapshot{
		URL: "https://a.test/signup",
		DOM: &page.DOM{
			Forms:  []page.Form{{Fields: []page.Input{field}}},
			Inputs: []page.Input{field},
		},
	}

	var validation []Issue
	for _, issue := range a.Issues(snap) {
		if issue.Type == IssueValidation {
			validation = append(validation, issue)
		}
	}
	require.Len(t, validation, 2)
	for _, issue := range validation {
		require.Equal(t, "[name='email']", issue.Element)
	}
}

func TestFormInstructionsCapped(t *testing.T) {
	a := New()
	fields := make([]page.Input, 7)
	for i := range fields {
		fields[i] = page.Input{Name: fmt.Sprintf("f%d", i), Required: true}
	}
	snap := page.Snapshot{
		URL: "https://a.test/apply",
		DOM: &page.DOM{Forms: []page.Form{{Fields: fields}}},
	}
	analysis := a.Analyze(snap)
	instructions := a.Instructions(snap, analysis)

	highlights := 0
	aggregates := 0
	for _, ins := range instructions {
		if action, _ := ins.Data["action"].(string); action == "highlight_field" {
			highlights++
		}
		if msg, _ := ins.Data["message"].(string); strings.Contains(msg, "required fields to continue") {
			aggregates++
		}
	}
	require.Equal(t, maxFieldHighlights, highlights)
	require.Equal(t, 1, aggregates, "exactly one aggregate notification")
}

func TestFormHighlightsNeverExceedEmptyFields(t *testing.T) {
	a := New()
	snap := page.Snapshot{
		URL: "https://a.test/contact",
		DOM: &page.DOM{Forms: []page.Form{{Fields: []page.Input{
			{Name: "name", Required: true},
			{Name: "email", Required: true, Value: "a@b.c"},
		}}}},
	}
	instructions := a.Instructions(snap, a.Analyze(snap))
	highlights := 0
	for _, ins := range instructions {
		if action, _ := ins.Data["action"].(string); action == "highlight_field" {
			highlights++
		}
	}
	require.Equal(t, 1, highlights)
}

func TestErrorPageInstructions(t *testing.T) {
	a := New()
	snap := page.Snapshot{URL: "https://a.test/x", Title: "500 Server Error"}
	instructions := a.Instructions(snap, a.Analyze(snap))
	require.NotEmpty(t, instructions)
	first := instructions[0]
	require.Equal(t, protocol.PriorityHigh, first.Priority)
	actions, ok := first.Data["actions"].([]protocol.Action)
	require.True(t, ok)
	require.Len(t, actions, 2)
}

func TestMobileTooltipEmitted(t *testing.T) {
	a := New()
	snap := page.Snapshot{
		URL:      "https://a.test/blog",
		Viewport: &page.Viewport{Width: 390, Height: 844},
	}
	instructions := a.Instructions(snap, a.Analyze(snap))
	found := false
	for _, ins := range instructions {
		if action, _ := ins.Data["action"].(string); action == "show_tooltip" {
			found = true
			require.Equal(t, protocol.InstructionContent, ins.Type)
			require.Equal(t, protocol.PriorityLow, ins.Priority)
		}
	}
	require.True(t, found)
}

func TestSuggestionsAggregateValidation(t *testing.T) {
	a := New()
	snap := page.Snapshot{
		URL: "https://a.test/signup",
		DOM: &page.DOM{
			Forms:  []page.Form{{Fields: []page.Input{{Name: "a", Required: true}}}},
			Inputs: []page.Input{{Name: "a", Required: true}, {Name: "b", Required: true}},
		},
	}
	analysis := a.Analyze(snap)
	var fix []Suggestion
	for _, s := range analysis.Suggestions {
		if s.Action == "fix_validation" {
			fix = append(fix, s)
		}
	}
	require.Len(t, fix, 1)
	require.Contains(t, fix[0].Message, "2 validation issues")
}
