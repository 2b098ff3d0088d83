package analyzer

import (
	"sort"
	"strings"

	"github.com/contextbridge/bridged/internal/page"
)

// Behavior pattern names.
const (
	PatternFormAbandonment     = "form_abandonment"
	PatternCheckoutAbandonment = "checkout_abandonment"
	PatternErrorEncountered    = "error_encountered"
)

// Behavior summarizes a session's snapshot trail.
type Behavior struct {
	PagesVisited        int      `json:"pagesVisited"`
	PageTypes           []string `json:"pageTypes"`
	AverageTimePerPage  float64  `json:"averageTimePerPage"`
	MostVisitedPageType PageType `json:"mostVisitedPageType,omitempty"`
	Patterns            []string `json:"behaviorPatterns"`
}

// Behavior analyzes an ordered snapshot trail, oldest first. Dwell time for
// a URL is the delta to the next snapshot, attributed to the earlier one;
// the final snapshot contributes no dwell time. When page-type counts tie,
// the lexicographically smallest type wins, so callers get a deterministic
// answer.
func (a *Analyzer) Behavior(trail []page.Snapshot) Behavior {
	if len(trail) == 0 {
		return Behavior{}
	}

	urls := make(map[string]struct{}, len(trail))
	types := make([]PageType, len(trail))
	typeSet := make(map[PageType]struct{})
	for i, snap := range trail {
		urls[snap.URL] = struct{}{}
		types[i] = a.Classify(snap)
		typeSet[types[i]] = struct{}{}
	}

	names := make([]string, 0, len(typeSet))
	for t := range typeSet {
		names = append(names, string(t))
	}
	sort.Strings(names)

	return Behavior{
		PagesVisited:        len(urls),
		PageTypes:           names,
		AverageTimePerPage:  averageDwell(trail),
		MostVisitedPageType: mostFrequent(types),
		Patterns:            a.patterns(trail, types),
	}
}

func averageDwell(trail []page.Snapshot) float64 {
	dwell := make(map[string]int64)
	for i := 0; i+1 < len(trail); i++ {
		dwell[trail[i].URL] += trail[i+1].Timestamp - trail[i].Timestamp
	}
	if len(dwell) == 0 {
		return 0
	}
	var total int64
	for _, ms := range dwell {
		total += ms
	}
	return float64(total) / float64(len(dwell))
}

func mostFrequent(types []PageType) PageType {
	counts := make(map[PageType]int, len(types))
	for _, t := range types {
		counts[t]++
	}
	var best PageType
	bestCount := -1
	for t, n := range counts {
		if n > bestCount || (n == bestCount && t < best) {
			best = t
			bestCount = n
		}
	}
	return best
}

// patterns needs at least two snapshots; a single capture says nothing about
// how the user moved.
func (a *Analyzer) patterns(trail []page.Snapshot, types []PageType) []string {
	if len(trail) < 2 {
		return nil
	}
	var out []string

	for i, snap := range trail {
		if types[i] == PageForm && emptyRequiredCount(snap) > 0 {
			out = append(out, PatternFormAbandonment)
			break
		}
	}

	if lastCheckout := lastIndex(types, PageCheckout); lastCheckout >= 0 {
		completed := false
		for _, snap := range trail[lastCheckout+1:] {
			url := strings.ToLower(snap.URL)
			if strings.Contains(url, "success") || strings.Contains(url, "thank") {
				completed = true
				break
			}
		}
		if !completed {
			out = append(out, PatternCheckoutAbandonment)
		}
	}

	for _, t := range types {
		if t == PageError {
			out = append(out, PatternErrorEncountered)
			break
		}
	}

	return out
}

func lastIndex(types []PageType, want PageType) int {
	for i := len(types) - 1; i >= 0; i-- {
		if types[i] == want {
			return i
		}
	}
	return -1
}

func emptyRequiredCount(snap page.Snapshot) int {
	if snap.DOM == nil {
		return 0
	}
	count := 0
	for _, form := range snap.DOM.Forms {
		for _, field := range form.Fields {
			if field.Required && field.Empty() {
				count++
			}
		}
	}
	for _, in := range snap.DOM.Inputs {
		if in.Required && in.Empty() {
			count++
		}
	}
	return count
}
