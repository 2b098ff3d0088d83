// Package analyzer classifies page snapshots and derives issues, suggestions,
// and frontend instructions from them.
//
// The rule set here is deliberately simple. It exists to fix the analysis
// interface and the instruction formats; the heuristics themselves are a
// stand-in for a smarter (e.g. model-driven) analyzer behind the same
// functions.
package analyzer

import (
	"fmt"
	"strings"

	"github.com/contextbridge/bridged/internal/page"
	"github.com/contextbridge/bridged/internal/protocol"
)

type PageType string

const (
	PageForm      PageType = "form"
	PageCheckout  PageType = "checkout"
	PageDashboard PageType = "dashboard"
	PageContent   PageType = "content"
	PageError     PageType = "error"
	PageLoading   PageType = "loading"
)

type IssueType string

const (
	IssueValidation    IssueType = "validation"
	IssueUsability     IssueType = "usability"
	IssueAccessibility IssueType = "accessibility"
	IssuePerformance   IssueType = "performance"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Issue is one problem spotted on the page.
type Issue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Element  string    `json:"element,omitempty"`
}

type SuggestionType string

const (
	SuggestImprovement SuggestionType = "improvement"
	SuggestNextStep    SuggestionType = "next_step"
	SuggestAlternative SuggestionType = "alternative"
)

// Suggestion is an advisory outcome of analysis, unlike instructions it is
// not pushed to the frontend.
type Suggestion struct {
	Type    SuggestionType `json:"type"`
	Message string         `json:"message"`
	Action  string         `json:"action,omitempty"`
}

// Analysis is the derived view of one snapshot. It is recomputed per
// snapshot and never persisted. Confidence is a coarse data-completeness
// proxy in [0,1], not a statistical confidence.
type Analysis struct {
	PageType    PageType     `json:"pageType"`
	UserIntent  string       `json:"userIntent,omitempty"`
	Issues      []Issue      `json:"issues"`
	Suggestions []Suggestion `json:"suggestions"`
	Confidence  float64      `json:"confidence"`
}

// Analyzer is stateless; one instance can serve every session.
type Analyzer struct{}

func New() *Analyzer {
	return &Analyzer{}
}

// Analyze classifies the snapshot and collects issues and suggestions.
func (a *Analyzer) Analyze(snap page.Snapshot) Analysis {
	pageType := a.Classify(snap)
	issues := a.Issues(snap)
	return Analysis{
		PageType:    pageType,
		UserIntent:  inferIntent(pageType),
		Issues:      issues,
		Suggestions: a.suggestions(snap, pageType, issues),
		Confidence:  confidence(snap, issues),
	}
}

var (
	checkoutURLWords  = []string{"checkout", "cart", "payment", "billing"}
	dashboardURLWords = []string{"dashboard", "admin", "panel"}
	errorWords        = []string{"error", "404", "500", "not found", "server error"}
	loadingWords      = []string{"loading", "please wait", "processing"}
)

// Classify determines the page type. Rules are evaluated in a fixed priority
// order and the first match wins: URL checks run before title/text checks,
// so a checkout URL whose title mentions an error still classifies as
// checkout.
func (a *Analyzer) Classify(snap page.Snapshot) PageType {
	url := strings.ToLower(snap.URL)
	title := strings.ToLower(snap.Title)
	text := ""
	if snap.DOM != nil {
		text = strings.ToLower(snap.DOM.Text)
	}
	combined := title + " " + text

	if containsAny(url, checkoutURLWords) {
		return PageCheckout
	}
	if containsAny(url, dashboardURLWords) {
		return PageDashboard
	}
	if containsAny(combined, errorWords) {
		return PageError
	}
	if containsAny(combined, loadingWords) {
		return PageLoading
	}
	if snap.DOM != nil && len(snap.DOM.Forms) > 0 {
		return PageForm
	}
	return PageContent
}

func containsAny(haystack string, words []string) bool {
	for _, word := range words {
		if strings.Contains(haystack, word) {
			return true
		}
	}
	return false
}

// inferIntent maps a page type to a coarse intent. The fallback is a
// constant "browsing"; it is not context sensitive.
func inferIntent(pageType PageType) string {
	switch pageType {
	case PageForm:
		return "form_filling"
	case PageCheckout:
		return "purchasing"
	default:
		return "browsing"
	}
}

const largeTextThreshold = 50_000

// mobileWidth is the viewport width below which a capture counts as mobile.
const mobileWidth = 768

// Issues runs every detector independently and returns all findings. A
// snapshot without DOM data yields no issues.
func (a *Analyzer) Issues(snap page.Snapshot) []Issue {
	if snap.DOM == nil {
		return nil
	}
	var issues []Issue

	// Required fields can arrive in the page-level input list, inside a
	// form, or both. Detectors scan each list as reported; a field present
	// in both yields two findings.
	emptyRequired := func(in page.Input) {
		if in.Required && in.Empty() {
			issues = append(issues, Issue{
				Type:     IssueValidation,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("Required field '%s' is empty", in.Label()),
				Element:  in.Selector(),
			})
		}
	}
	for _, in := range snap.DOM.Inputs {
		emptyRequired(in)
	}
	for _, form := range snap.DOM.Forms {
		for _, in := range form.Fields {
			emptyRequired(in)
		}
	}

	for _, in := range snap.DOM.Inputs {
		if in.Placeholder == "" && in.Name == "" {
			issues = append(issues, Issue{
				Type:     IssueAccessibility,
				Severity: SeverityLow,
				Message:  "Input field missing label or placeholder",
				Element:  in.Selector(),
			})
		}
	}

	if len(snap.DOM.Text) > largeTextThreshold {
		issues = append(issues, Issue{
			Type:     IssuePerformance,
			Severity: SeverityMedium,
			Message:  "Page contains large amount of text content",
			Element:  "body",
		})
	}

	if snap.Viewport != nil && snap.Viewport.Width < mobileWidth {
		issues = append(issues, Issue{
			Type:     IssueUsability,
			Severity: SeverityLow,
			Message:  "Mobile viewport detected - ensure responsive design",
			Element:  "viewport",
		})
	}

	return issues
}

func (a *Analyzer) suggestions(snap page.Snapshot, pageType PageType, issues []Issue) []Suggestion {
	var out []Suggestion

	if pageType == PageForm && snap.DOM != nil && len(snap.DOM.Forms) > 0 {
		out = append(out, Suggestion{
			Type:    SuggestImprovement,
			Message: "Consider adding form validation feedback",
			Action:  "add_validation",
		})
	}
	if pageType == PageCheckout {
		out = append(out, Suggestion{
			Type:    SuggestNextStep,
			Message: "Review your order before proceeding to payment",
			Action:  "review_order",
		})
	}

	validation := 0
	for _, issue := range issues {
		if issue.Type == IssueValidation {
			validation++
		}
	}
	if validation > 0 {
		out = append(out, Suggestion{
			Type:    SuggestImprovement,
			Message: fmt.Sprintf("Fix %d validation issues before proceeding", validation),
			Action:  "fix_validation",
		})
	}
	return out
}

func confidence(snap page.Snapshot, issues []Issue) float64 {
	score := 0.5
	if snap.DOM != nil && snap.DOM.Text != "" {
		score += 0.2
	}
	if snap.DOM != nil && len(snap.DOM.Forms) > 0 {
		score += 0.1
	}
	if snap.Viewport != nil {
		score += 0.1
	}
	if n := len(issues); n > 0 {
		bump := float64(n) * 0.05
		if bump > 0.2 {
			bump = 0.2
		}
		score += bump
	}
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// maxFieldHighlights caps per-field highlight instructions so a long form
// does not flood the frontend.
const maxFieldHighlights = 3

// Instructions turns an analysis into an ordered list of directives:
// page-type specific ones first, then universal usability hints, then one
// instruction per detected issue.
func (a *Analyzer) Instructions(snap page.Snapshot, analysis Analysis) []protocol.Instruction {
	var out []protocol.Instruction

	switch analysis.PageType {
	case PageForm:
		out = append(out, formInstructions(snap)...)
	case PageCheckout:
		out = append(out, protocol.NewInstruction(protocol.InstructionNotification, protocol.PriorityHigh, map[string]any{
			"message":          "You're in the checkout process. Please review your order carefully.",
			"notificationType": "info",
			"autoClose":        false,
		}))
	case PageError:
		out = append(out, protocol.NewInstruction(protocol.InstructionNotification, protocol.PriorityHigh, map[string]any{
			"message":          "It looks like there's an error on this page. Would you like to go back or try refreshing?",
			"notificationType": "error",
			"actions": []protocol.Action{
				{Label: "Go Back", Action: "go_back"},
				{Label: "Refresh", Action: "refresh"},
			},
			"autoClose": false,
		}))
	}

	if snap.Viewport != nil && snap.Viewport.Width < mobileWidth {
		out = append(out, protocol.NewInstruction(protocol.InstructionContent, protocol.PriorityLow, map[string]any{
			"action":   "show_tooltip",
			"selector": "body",
			"content":  "Tip: You're viewing this on a mobile device. Tap and hold for more options.",
			"position": "top",
			"duration": 5000,
		}))
	}

	for _, issue := range analysis.Issues {
		if ins, ok := issueInstruction(issue); ok {
			out = append(out, ins)
		}
	}

	return out
}

func formInstructions(snap page.Snapshot) []protocol.Instruction {
	if snap.DOM == nil {
		return nil
	}
	var empty []page.Input
	for _, form := range snap.DOM.Forms {
		for _, field := range form.Fields {
			if field.Required && field.Empty() {
				empty = append(empty, field)
			}
		}
	}
	if len(empty) == 0 {
		return nil
	}

	out := make([]protocol.Instruction, 0, maxFieldHighlights+1)
	for i, field := range empty {
		if i == maxFieldHighlights {
			break
		}
		out = append(out, protocol.NewInstruction(protocol.InstructionFormAssistance, protocol.PriorityMedium, map[string]any{
			"action":   "highlight_field",
			"selector": field.Selector(),
			"message":  fmt.Sprintf("This field is required: %s", field.Label()),
		}))
	}

	out = append(out, protocol.NewInstruction(protocol.InstructionNotification, protocol.PriorityMedium, map[string]any{
		"message":          fmt.Sprintf("Please complete %d required fields to continue", len(empty)),
		"notificationType": "info",
		"actions": []protocol.Action{
			{Label: "Highlight Fields", Action: "highlight_required_fields"},
		},
		"autoClose": false,
	}))
	return out
}

func issueInstruction(issue Issue) (protocol.Instruction, bool) {
	switch issue.Type {
	case IssueValidation:
		if issue.Element == "" {
			return protocol.Instruction{}, false
		}
		priority := protocol.PriorityMedium
		if issue.Severity == SeverityHigh {
			priority = protocol.PriorityHigh
		}
		return protocol.NewInstruction(protocol.InstructionFormAssistance, priority, map[string]any{
			"action":   "show_error",
			"selector": issue.Element,
			"message":  issue.Message,
		}), true
	case IssueAccessibility:
		return protocol.NewInstruction(protocol.InstructionNotification, protocol.PriorityLow, map[string]any{
			"message":          fmt.Sprintf("Accessibility issue detected: %s", issue.Message),
			"notificationType": "warning",
			"autoClose":        true,
			"duration":         8000,
		}), true
	default:
		return protocol.Instruction{}, false
	}
}
