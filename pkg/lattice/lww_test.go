package lattice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLWW_SetAndRead(t *testing.T) {
	l := LWWLattice{}
	s := l.Empty()

	s, _ = mutate(t, l, s, 1, "set", "hello")
	require.Equal(t, []byte("hello"), l.Read(s))

	s, _ = mutate(t, l, s, 1, "set", []byte("world"))
	require.Equal(t, []byte("world"), l.Read(s))
}

func TestLWW_LaterWriteWins(t *testing.T) {
	l := LWWLattice{}
	a := l.Empty()
	a, _ = mutate(t, l, a, 1, "set", "first")

	b := l.Empty()
	b, db := mutate(t, l, b, 2, "set", "second")

	// The shared clock stamps the second write later regardless of node.
	merged := l.Compress(l.Join(a, db))
	require.Equal(t, []byte("second"), l.Read(merged))

	// Joining the other way agrees.
	merged2 := l.Compress(l.Join(b, a))
	require.Equal(t, []byte("second"), l.Read(merged2))
}

func TestLWW_TieBreaksOnNode(t *testing.T) {
	l := LWWLattice{}

	a := NewLWWRegister()
	a.Raw = []byte("from-low")
	a.TS = 100
	a.Node = 1
	a.Ctx.Add(Dot{Node: 1, Counter: 1})

	b := NewLWWRegister()
	b.Raw = []byte("from-high")
	b.TS = 100
	b.Node = 2
	b.Ctx.Add(Dot{Node: 2, Counter: 1})

	require.Equal(t, []byte("from-high"), l.Read(l.Join(a, b)))
	require.Equal(t, []byte("from-high"), l.Read(l.Join(b, a)))
}

func TestLWW_BadMutator(t *testing.T) {
	l := LWWLattice{}
	_, err := l.Mutate("append", []any{"x"}, 1, l.Empty())
	require.ErrorIs(t, err, ErrUnknownMutator)

	_, err = l.Mutate("set", []any{42}, 1, l.Empty())
	require.ErrorIs(t, err, ErrBadArgs)
}

func TestLWW_SerializeRoundtrip(t *testing.T) {
	l := LWWLattice{}
	s := l.Empty()
	s, _ = mutate(t, l, s, 3, "set", "payload")

	raw, err := s.Bytes()
	require.NoError(t, err)
	decoded, err := FromBytes(TypeLWW, raw)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), l.Read(decoded))
	require.Equal(t, uint64(3), decoded.(*LWWRegister).Node)
}

func TestFromBytes_UnknownType(t *testing.T) {
	_, err := FromBytes(Type(0x7F), nil)
	require.Error(t, err)
}
