package instructionlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contextbridge/bridged/internal/protocol"
)

func TestRecordAndRecent(t *testing.T) {
	s := NewStore("")
	s.Record("sess-1", protocol.NewInstruction(protocol.InstructionNotification, protocol.PriorityHigh, nil))
	s.Record("sess-2", protocol.NewInstruction(protocol.InstructionFormAssistance, protocol.PriorityMedium, nil))

	require.Equal(t, 2, s.Len())
	recent := s.Recent(1)
	require.Len(t, recent, 1)
	require.Equal(t, "sess-2", recent[0].SessionID)

	require.Len(t, s.BySession("sess-1"), 1)
	require.Empty(t, s.BySession("sess-3"))
}

func TestCompact(t *testing.T) {
	s := NewStore("")
	for i := 0; i < 5; i++ {
		s.Record("sess", protocol.NewInstruction(protocol.InstructionContent, protocol.PriorityLow, nil))
	}
	removed, err := s.Compact(2)
	require.NoError(t, err)
	require.Equal(t, 3, removed)
	require.Equal(t, 2, s.Len())
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instructions.json")

	s := NewStore(path)
	ins := protocol.NewInstruction(protocol.InstructionNotification, protocol.PriorityHigh, map[string]any{"message": "hi"})
	s.Record("sess-1", ins)

	reloaded := NewStore(path)
	require.Equal(t, 1, reloaded.Len())
	got := reloaded.Recent(0)[0]
	require.Equal(t, ins.ID, got.Instruction.ID)
	require.Equal(t, "hi", got.Instruction.Data["message"])
}
