package lattice

import (
	"fmt"

	"github.com/shinyes/deltasync/pkg/hlc"
)

// LWWRegister is a last-write-wins register. Writes are stamped with a hybrid
// logical clock timestamp; ties break on the writing node id so the join is a
// total order and therefore associative, commutative and idempotent.
type LWWRegister struct {
	Raw  []byte         `msgpack:"raw"`
	TS   int64          `msgpack:"ts"`
	Node uint64         `msgpack:"node"`
	Ctx  *CausalContext `msgpack:"ctx"`
}

// NewLWWRegister creates an unset register.
func NewLWWRegister() *LWWRegister {
	return &LWWRegister{Ctx: NewCausalContext()}
}

func (r *LWWRegister) Type() Type              { return TypeLWW }
func (r *LWWRegister) Context() *CausalContext { return r.Ctx }

func (r *LWWRegister) Bytes() ([]byte, error) { return marshalState(r) }

func (r *LWWRegister) normalize() {
	if r.Ctx == nil {
		r.Ctx = NewCausalContext()
	}
	r.Ctx.init()
}

// wins reports whether r's write supersedes other's.
func (r *LWWRegister) wins(other *LWWRegister) bool {
	if cmp := hlc.Compare(r.TS, other.TS); cmp != 0 {
		return cmp > 0
	}
	return r.Node > other.Node
}

// LWWLattice implements the Lattice capability for LWWRegister states.
//
// Mutators: "set" taking the new value as a []byte or string. A nil Clock
// falls back to a process-wide clock.
type LWWLattice struct {
	Clock *hlc.Clock
}

var defaultClock = hlc.New()

func (l LWWLattice) clock() *hlc.Clock {
	if l.Clock != nil {
		return l.Clock
	}
	return defaultClock
}

func (LWWLattice) Empty() State { return NewLWWRegister() }

func (LWWLattice) Read(s State) any {
	return s.(*LWWRegister).Raw
}

func (l LWWLattice) Mutate(mutator string, args []any, node uint64, s State) (State, error) {
	reg := s.(*LWWRegister)
	if mutator != "set" {
		return nil, fmt.Errorf("%w: lww register has no mutator %q", ErrUnknownMutator, mutator)
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: want one value, got %d args", ErrBadArgs, len(args))
	}

	var raw []byte
	switch v := args[0].(type) {
	case []byte:
		raw = append([]byte(nil), v...)
	case string:
		raw = []byte(v)
	default:
		return nil, fmt.Errorf("%w: value must be []byte or string, got %T", ErrBadArgs, args[0])
	}

	delta := NewLWWRegister()
	delta.Raw = raw
	delta.TS = l.clock().Now()
	delta.Node = node
	delta.Ctx.Add(reg.Ctx.Next(node))
	return delta, nil
}

func (LWWLattice) Join(a, b State) State {
	ra, rb := a.(*LWWRegister), b.(*LWWRegister)
	out := NewLWWRegister()

	winner := ra
	if rb.TS != 0 && (ra.TS == 0 || rb.wins(ra)) {
		winner = rb
	}
	out.Raw = append([]byte(nil), winner.Raw...)
	out.TS = winner.TS
	out.Node = winner.Node

	out.Ctx = ra.Ctx.Clone()
	out.Ctx.Join(rb.Ctx)
	return out
}

func (LWWLattice) Compress(s State) State {
	reg := s.(*LWWRegister)
	reg.Ctx.Compact()
	return reg
}
