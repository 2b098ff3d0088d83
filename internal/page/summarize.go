package page

import (
	"strings"

	"golang.org/x/net/html"
)

const (
	defaultMaxText   = 64_000
	defaultMaxInputs = 120
)

// SummarizeOptions bounds how much of a markup-only capture the summarizer
// turns into structured DOM data.
type SummarizeOptions struct {
	MaxText   int
	MaxInputs int
}

// Summarizer derives text, forms, and inputs from raw page markup. Frontends
// normally send structured DOM data; when a capture carries only html, the
// summarizer fills in the rest so the analyzer has something to work with.
type Summarizer struct {
	maxText   int
	maxInputs int
}

func NewSummarizer(opts SummarizeOptions) *Summarizer {
	maxText := opts.MaxText
	if maxText <= 0 {
		maxText = defaultMaxText
	}
	maxInputs := opts.MaxInputs
	if maxInputs <= 0 {
		maxInputs = defaultMaxInputs
	}
	return &Summarizer{maxText: maxText, maxInputs: maxInputs}
}

// Summarize fills the snapshot's DOM text, forms, and inputs from its raw
// markup. Fields the capture already populated are left alone.
func (s *Summarizer) Summarize(snap Snapshot) Snapshot {
	if snap.DOM == nil || snap.DOM.HTML == "" {
		return snap
	}
	needText := strings.TrimSpace(snap.DOM.Text) == ""
	needForms := len(snap.DOM.Forms) == 0
	needInputs := len(snap.DOM.Inputs) == 0
	if !needText && !needForms && !needInputs {
		return snap
	}

	parsed, ok := s.parse(snap.DOM.HTML)
	if !ok {
		if needText {
			snap.DOM.Text = compactWhitespace(stripTags(snap.DOM.HTML))
			if len(snap.DOM.Text) > s.maxText {
				snap.DOM.Text = snap.DOM.Text[:s.maxText]
			}
		}
		return snap
	}

	if needText {
		text := compactWhitespace(parsed.text)
		if len(text) > s.maxText {
			text = text[:s.maxText]
		}
		snap.DOM.Text = text
	}
	if needForms {
		snap.DOM.Forms = parsed.forms
	}
	if needInputs {
		snap.DOM.Inputs = parsed.loose
	}
	return snap
}

type parsedMarkup struct {
	text  string
	forms []Form
	loose []Input
}

func (s *Summarizer) parse(markup string) (parsedMarkup, bool) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return parsedMarkup{}, false
	}

	var out parsedMarkup
	var b strings.Builder
	total := 0

	var walk func(n *html.Node, form *Form)
	walk = func(n *html.Node, form *Form) {
		switch n.Type {
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteByte(' ')
			}
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			switch tag {
			case "script", "style", "noscript":
				return
			case "form":
				f := Form{
					ID:     attr(n, "id"),
					Name:   attr(n, "name"),
					Action: attr(n, "action"),
					Method: strings.ToLower(attr(n, "method")),
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c, &f)
				}
				out.forms = append(out.forms, f)
				return
			case "input", "select", "textarea":
				if total >= s.maxInputs {
					return
				}
				in := inputFromNode(tag, n)
				if in.Type == "hidden" || in.Type == "submit" || in.Type == "button" {
					return
				}
				total++
				if form != nil {
					form.Fields = append(form.Fields, in)
				} else {
					out.loose = append(out.loose, in)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, form)
		}
	}
	walk(doc, nil)

	out.text = b.String()
	return out, true
}

func inputFromNode(tag string, n *html.Node) Input {
	in := Input{
		ID:          attr(n, "id"),
		Name:        attr(n, "name"),
		Type:        strings.ToLower(attr(n, "type")),
		Value:       attr(n, "value"),
		Placeholder: attr(n, "placeholder"),
		Required:    hasAttr(n, "required"),
	}
	switch tag {
	case "select":
		in.Type = "select"
	case "textarea":
		in.Type = "textarea"
		in.Value = innerText(n)
	default:
		if in.Type == "" {
			in.Type = "text"
		}
	}
	return in
}

func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

func compactWhitespace(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

func stripTags(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	inTag := false
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				b.WriteByte(input[i])
			}
		}
	}
	return b.String()
}
