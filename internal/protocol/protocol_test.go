package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(TypeScreenshotAck, Ack{Status: "success", URL: "https://example.com", Size: 42})
	require.NoError(t, err)
	require.NotZero(t, msg.Timestamp)

	wire, err := json.Marshal(msg)
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal(wire, &got))
	require.Equal(t, TypeScreenshotAck, got.Type)

	var ack Ack
	require.NoError(t, json.Unmarshal(got.Data, &ack))
	require.Equal(t, "success", ack.Status)
	require.Equal(t, 42, ack.Size)
}

func TestNewMessageNilPayload(t *testing.T) {
	msg, err := NewMessage(TypePong, nil)
	require.NoError(t, err)
	require.Nil(t, msg.Data)
}

func TestNewInstructionFreshIdentity(t *testing.T) {
	a := NewInstruction(InstructionNotification, PriorityHigh, map[string]any{"message": "review"})
	b := NewInstruction(InstructionNotification, PriorityHigh, map[string]any{"message": "review"})
	require.NotEqual(t, a.ID, b.ID, "every emission gets a fresh id")
	require.NotZero(t, a.Timestamp)
}

func TestInstructionWireShape(t *testing.T) {
	ins := NewInstruction(InstructionFormAssistance, PriorityMedium, map[string]any{
		"action":   "highlight_field",
		"selector": "#email",
	})
	wire, err := json.Marshal(ins)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(wire, &decoded))
	for _, key := range []string{"id", "type", "timestamp", "priority", "data"} {
		require.Contains(t, decoded, key)
	}
	require.Equal(t, "form_assistance", decoded["type"])
	require.Equal(t, "medium", decoded["priority"])
}
