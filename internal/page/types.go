package page

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Input describes one form control as captured by the frontend.
type Input struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Value       string `json:"value,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Selector returns a CSS selector for the input, preferring its id over its
// name attribute.
func (in Input) Selector() string {
	if in.ID != "" {
		return "#" + in.ID
	}
	if in.Name != "" {
		return "[name='" + in.Name + "']"
	}
	return "input"
}

// Label returns a human-readable handle for the input.
func (in Input) Label() string {
	if in.Name != "" {
		return in.Name
	}
	if in.ID != "" {
		return in.ID
	}
	return "Field"
}

// Empty reports whether the input carries no value at all. Whitespace counts
// as a value.
func (in Input) Empty() bool {
	return in.Value == ""
}

// Form is one web form and its ordered fields.
type Form struct {
	ID     string  `json:"id,omitempty"`
	Name   string  `json:"name,omitempty"`
	Action string  `json:"action,omitempty"`
	Method string  `json:"method,omitempty"`
	Fields []Input `json:"fields,omitempty"`
}

// DOM is the reduced page content: plain text, optional raw markup, tracked
// forms, and page-level inputs that live outside any tracked form. Forms and
// inputs may overlap; no dedup is enforced and callers must not assume the
// two lists are disjoint.
type DOM struct {
	Text   string  `json:"text"`
	HTML   string  `json:"html,omitempty"`
	Forms  []Form  `json:"forms,omitempty"`
	Inputs []Input `json:"inputs,omitempty"`
}

// Viewport carries pixel dimensions and scroll offsets.
type Viewport struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	ScrollX int `json:"scrollX"`
	ScrollY int `json:"scrollY"`
}

// Snapshot is one captured description of a live page at a point in time.
// Snapshots are immutable once built and are not versioned; a later capture
// for the same URL simply replaces the stored one. Timestamps are epoch
// milliseconds as reported by the capturing side and are not guaranteed
// monotonic within a session.
type Snapshot struct {
	URL       string         `json:"url"`
	Title     string         `json:"title"`
	Timestamp int64          `json:"timestamp"`
	DOM       *DOM           `json:"dom,omitempty"`
	Viewport  *Viewport      `json:"viewport,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ErrMissingURL is returned when a capture payload has no url field.
var ErrMissingURL = errors.New("snapshot missing url")

// ParseSnapshot decodes a wire payload into a Snapshot, recursively
// reconstructing dom, forms, fields, and viewport and applying field
// defaults for anything absent.
func ParseSnapshot(raw []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.URL == "" {
		return Snapshot{}, ErrMissingURL
	}
	snap.applyDefaults()
	return snap, nil
}

func (s *Snapshot) applyDefaults() {
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	if s.DOM == nil {
		return
	}
	for i := range s.DOM.Forms {
		defaultInputs(s.DOM.Forms[i].Fields)
	}
	defaultInputs(s.DOM.Inputs)
}

func defaultInputs(inputs []Input) {
	for i := range inputs {
		if inputs[i].Type == "" {
			inputs[i].Type = "text"
		}
	}
}
