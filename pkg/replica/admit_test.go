package replica

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shinyes/deltasync/pkg/lattice"
)

func contextOf(dots ...lattice.Dot) *lattice.CausalContext {
	cc := lattice.NewCausalContext()
	for _, d := range dots {
		cc.Add(d)
	}
	cc.Compact()
	return cc
}

func TestAdmissible_EmptyLocalAcceptsAnything(t *testing.T) {
	local := lattice.NewCausalContext()
	incoming := contextOf(lattice.Dot{Node: 1, Counter: 5})
	require.True(t, admissible(local, incoming))
}

func TestAdmissible_ContiguousExtension(t *testing.T) {
	local := contextOf(
		lattice.Dot{Node: 1, Counter: 1},
		lattice.Dot{Node: 1, Counter: 2},
	)

	next := contextOf(lattice.Dot{Node: 1, Counter: 3})
	require.True(t, admissible(local, next))

	// Re-delivery of already known dots is fine.
	replay := contextOf(lattice.Dot{Node: 1, Counter: 2})
	require.True(t, admissible(local, replay))
}

func TestAdmissible_RejectsGap(t *testing.T) {
	local := contextOf(lattice.Dot{Node: 1, Counter: 1})

	// First claimed dot is 3: dot 2 from node 1 would be skipped.
	gapped := contextOf(lattice.Dot{Node: 1, Counter: 3})
	require.False(t, admissible(local, gapped))
}

func TestAdmissible_FullStateAlwaysPasses(t *testing.T) {
	local := contextOf(lattice.Dot{Node: 1, Counter: 1})

	full := contextOf(
		lattice.Dot{Node: 1, Counter: 1},
		lattice.Dot{Node: 1, Counter: 2},
		lattice.Dot{Node: 1, Counter: 3},
	)
	require.True(t, admissible(local, full))
}

func TestAdmissible_GapOnOneNodeRejectsWholeInterval(t *testing.T) {
	local := contextOf(
		lattice.Dot{Node: 1, Counter: 1},
		lattice.Dot{Node: 2, Counter: 1},
	)

	incoming := contextOf(
		lattice.Dot{Node: 1, Counter: 2},
		lattice.Dot{Node: 2, Counter: 4},
	)
	require.False(t, admissible(local, incoming))
}
