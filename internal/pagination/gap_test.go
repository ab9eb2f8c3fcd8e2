package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGapMachine_Lifecycle(t *testing.T) {
	m := NewGapMachine("P2")
	assert.Equal(t, GapState{Phase: GapInitial, Anchor: "P2"}, m.State())

	require.True(t, m.Enter(GapState{Phase: GapLoading, Anchor: "P2"}))
	require.True(t, m.Enter(GapState{Phase: GapFail, Anchor: "P2"}))
	require.True(t, m.Enter(GapState{Phase: GapLoading, Anchor: "P2"}))
	require.True(t, m.Enter(GapState{Phase: GapSuccess, Anchor: "P2"}))

	for _, p := range []GapPhase{GapInitial, GapLoading, GapSuccess, GapFail} {
		assert.False(t, m.Enter(GapState{Phase: p, Anchor: "P2"}), "Success is terminal")
	}
	assert.Equal(t, GapSuccess, m.State().Phase)
}

func TestValidGap_AnchorIsFixed(t *testing.T) {
	assert.False(t, ValidGap(
		GapState{Phase: GapInitial, Anchor: "A"},
		GapState{Phase: GapLoading, Anchor: "B"},
	))
	assert.False(t, ValidGap(
		GapState{Phase: GapInitial, Anchor: "A"},
		GapState{Phase: GapSuccess, Anchor: "A"},
	))
	assert.Equal(t, "Loading(A)", GapState{Phase: GapLoading, Anchor: "A"}.String())
}
