// Package protocol defines the message envelope exchanged with a frontend
// over a persistent session, and the instruction events streamed back out.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageType string

// Inbound message types. Any type is valid at any time; there is no
// handshake ordering beyond the optional auth message.
const (
	TypeAuth              MessageType = "auth"
	TypeContext           MessageType = "context"
	TypeContextChange     MessageType = "context_change"
	TypeScreenshot        MessageType = "screenshot"
	TypeInstructionResult MessageType = "instruction_result"
	TypePong              MessageType = "pong"
)

// Outbound message types.
const (
	TypeAuthResponse    MessageType = "auth_response"
	TypeContextReceived MessageType = "context_received"
	TypeContextError    MessageType = "context_error"
	TypeScreenshotAck   MessageType = "screenshot_ack"
	TypeInstruction     MessageType = "instruction"
	TypeEcho            MessageType = "echo"
)

// Message is the envelope used in both directions.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
	ID        string          `json:"id,omitempty"`
}

// NewMessage wraps a payload in an envelope stamped with the current time.
func NewMessage(t MessageType, payload any) (Message, error) {
	msg := Message{Type: t, Timestamp: NowMillis()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
		}
		msg.Data = data
	}
	return msg, nil
}

// Ack is the payload of auth_response, context_received, context_error, and
// screenshot_ack messages.
type Ack struct {
	Status       string `json:"status"`
	URL          string `json:"url,omitempty"`
	Size         int    `json:"size,omitempty"`
	Instructions int    `json:"instructions,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ScreenshotPayload is the inbound screenshot message body.
type ScreenshotPayload struct {
	URL        string `json:"url,omitempty"`
	Screenshot string `json:"screenshot"`
}

// InstructionResult reports how the frontend executed an instruction. It is
// logged only; the core never retries an instruction.
type InstructionResult struct {
	InstructionID string `json:"instructionId,omitempty"`
	Status        string `json:"status,omitempty"`
	Error         string `json:"error,omitempty"`
}

type InstructionType string

const (
	InstructionFormAssistance InstructionType = "form_assistance"
	InstructionNotification   InstructionType = "contextual_notification"
	InstructionContent        InstructionType = "content_instruction"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Instruction is a fire-and-forget directive for the page-rendering side.
// Each emission gets a fresh id and timestamp; instructions are never
// deduplicated, merged, or retried.
type Instruction struct {
	ID        string         `json:"id"`
	Type      InstructionType `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Priority  Priority       `json:"priority"`
	Data      map[string]any `json:"data"`
}

// Action is one choice offered inside a notification instruction.
type Action struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// NewInstruction stamps a directive with a unique id and the current time.
func NewInstruction(t InstructionType, p Priority, data map[string]any) Instruction {
	return Instruction{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: NowMillis(),
		Priority:  p,
		Data:      data,
	}
}

// NowMillis is the epoch-millisecond clock used for all wire timestamps.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
