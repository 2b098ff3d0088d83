package page

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSnapshotDefaults(t *testing.T) {
	raw := []byte(`{
		"url": "https://example.com/signup",
		"title": "Sign up",
		"timestamp": 1700000000000,
		"dom": {
			"text": "Create an account",
			"forms": [{"id": "signup", "fields": [{"name": "email", "required": true}]}],
			"inputs": [{"id": "promo"}]
		},
		"viewport": {"width": 1280, "height": 720, "scrollX": 0, "scrollY": 40}
	}`)

	snap, err := ParseSnapshot(raw)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/signup", snap.URL)
	require.NotNil(t, snap.Metadata, "absent metadata defaults to an empty map")
	require.Len(t, snap.DOM.Forms, 1)
	require.Equal(t, "text", snap.DOM.Forms[0].Fields[0].Type, "input type defaults to text")
	require.Equal(t, "text", snap.DOM.Inputs[0].Type)
	require.Equal(t, 40, snap.Viewport.ScrollY)
}

func TestParseSnapshotMissingURL(t *testing.T) {
	_, err := ParseSnapshot([]byte(`{"title": "nowhere"}`))
	require.ErrorIs(t, err, ErrMissingURL)
}

func TestParseSnapshotBadJSON(t *testing.T) {
	_, err := ParseSnapshot([]byte(`{"url": `))
	require.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := Snapshot{
		URL:       "https://example.com/checkout",
		Title:     "Checkout",
		Timestamp: 1700000000123,
		DOM: &DOM{
			Text: "Order summary",
			HTML: "<main>Order summary</main>",
			Forms: []Form{{
				ID:     "payment",
				Action: "/pay",
				Method: "post",
				Fields: []Input{
					{Name: "card", Type: "text", Required: true},
					{Name: "cvv", Type: "password", Value: "123"},
				},
			}},
			Inputs: []Input{{ID: "coupon", Type: "text", Placeholder: "Coupon code"}},
		},
		Viewport: &Viewport{Width: 390, Height: 844, ScrollX: 0, ScrollY: 12},
		Metadata: map[string]any{"capture": "manual"},
	}

	wire, err := json.Marshal(snap)
	require.NoError(t, err)
	got, err := ParseSnapshot(wire)
	require.NoError(t, err)
	require.Equal(t, snap, got)
}

func TestSnapshotWireFieldNames(t *testing.T) {
	wire, err := json.Marshal(Snapshot{
		URL:      "https://example.com",
		Viewport: &Viewport{ScrollX: 3, ScrollY: 7},
	})
	require.NoError(t, err)
	require.Contains(t, string(wire), `"scrollX":3`)
	require.Contains(t, string(wire), `"scrollY":7`)
}

func TestInputSelector(t *testing.T) {
	require.Equal(t, "#email", Input{ID: "email", Name: "email"}.Selector())
	require.Equal(t, "[name='email']", Input{Name: "email"}.Selector())
	require.Equal(t, "input", Input{}.Selector())
}
