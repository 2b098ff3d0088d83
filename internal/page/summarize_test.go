package page

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleMarkup = `<html><body>
<h1>Create your account</h1>
<form id="signup" action="/signup" method="POST">
  <input type="email" name="email" required placeholder="Email">
  <input type="password" name="password" required>
  <input type="submit" value="Go">
</form>
<input id="search" type="text" placeholder="Search">
<script>ignored()</script>
</body></html>`

func TestSummarizeDerivesFormsAndText(t *testing.T) {
	s := NewSummarizer(SummarizeOptions{})
	snap := Snapshot{
		URL: "https://example.com/signup",
		DOM: &DOM{HTML: sampleMarkup},
	}

	got := s.Summarize(snap)
	require.Contains(t, got.DOM.Text, "Create your account")
	require.NotContains(t, got.DOM.Text, "ignored")

	require.Len(t, got.DOM.Forms, 1)
	form := got.DOM.Forms[0]
	require.Equal(t, "signup", form.ID)
	require.Equal(t, "post", form.Method)
	require.Len(t, form.Fields, 2, "submit controls are not fields")
	require.Equal(t, "email", form.Fields[0].Name)
	require.True(t, form.Fields[0].Required)

	require.Len(t, got.DOM.Inputs, 1)
	require.Equal(t, "search", got.DOM.Inputs[0].ID)
}

func TestSummarizeKeepsCapturedFields(t *testing.T) {
	s := NewSummarizer(SummarizeOptions{})
	snap := Snapshot{
		URL: "https://example.com",
		DOM: &DOM{
			Text:  "already captured",
			HTML:  sampleMarkup,
			Forms: []Form{{ID: "from-frontend"}},
		},
	}

	got := s.Summarize(snap)
	require.Equal(t, "already captured", got.DOM.Text)
	require.Equal(t, "from-frontend", got.DOM.Forms[0].ID)
	require.NotEmpty(t, got.DOM.Inputs, "missing inputs are still derived")
}

func TestSummarizeTruncatesText(t *testing.T) {
	s := NewSummarizer(SummarizeOptions{MaxText: 10})
	snap := Snapshot{
		URL: "https://example.com",
		DOM: &DOM{HTML: "<p>this text is much longer than ten characters</p>"},
	}
	got := s.Summarize(snap)
	require.LessOrEqual(t, len(got.DOM.Text), 10)
}

func TestSummarizeNoDOM(t *testing.T) {
	s := NewSummarizer(SummarizeOptions{})
	snap := Snapshot{URL: "https://example.com"}
	require.Equal(t, snap, s.Summarize(snap))
}
