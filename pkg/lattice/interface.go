package lattice

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Type identifies a lattice implementation on the wire.
type Type byte

const (
	TypeLWW       Type = 0x01
	TypeORSet     Type = 0x02
	TypePNCounter Type = 0x03
)

var (
	ErrUnknownMutator = errors.New("unknown mutator for this lattice")
	ErrBadArgs        = errors.New("invalid mutator arguments")
)

// State is a join-semilattice value: the payload of both full states and
// delta intervals. Both shapes are indistinguishable to a receiver.
type State interface {
	// Type returns the lattice type tag used by the wire factory.
	Type() Type

	// Context returns the causal context of the state.
	Context() *CausalContext

	// Bytes serializes the state for transport.
	Bytes() ([]byte, error)
}

// Lattice is the capability the replica consumes. Implementations must keep
// Join commutative, associative and idempotent, and Compress must satisfy
// join(compress(s), x) == compress(join(s, x)) semantically.
type Lattice interface {
	// Empty returns the bottom element.
	Empty() State

	// Read returns the user-visible projection of a state.
	Read(s State) any

	// Mutate applies a named mutator on behalf of node and returns the delta.
	// The delta has not been joined into s.
	Mutate(mutator string, args []any, node uint64, s State) (State, error)

	// Join computes the least upper bound of a and b. Neither input is
	// modified.
	Join(a, b State) State

	// Compress normalizes a state, folding contiguous dots into the causal
	// context's compact prefix.
	Compress(s State) State
}

// FromBytes reconstructs a state of the given type from its serialized form.
func FromBytes(t Type, data []byte) (State, error) {
	switch t {
	case TypeORSet:
		s := NewORSet()
		if err := msgpack.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("decode orset: %w", err)
		}
		s.normalize()
		return s, nil
	case TypePNCounter:
		s := NewPNCounter()
		if err := msgpack.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("decode pncounter: %w", err)
		}
		s.normalize()
		return s, nil
	case TypeLWW:
		s := NewLWWRegister()
		if err := msgpack.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("decode lww register: %w", err)
		}
		s.normalize()
		return s, nil
	default:
		return nil, fmt.Errorf("unknown lattice type: 0x%02x", byte(t))
	}
}

// For returns the lattice implementation matching a type tag.
func For(t Type) (Lattice, error) {
	switch t {
	case TypeORSet:
		return ORSetLattice{}, nil
	case TypePNCounter:
		return PNCounterLattice{}, nil
	case TypeLWW:
		return LWWLattice{}, nil
	default:
		return nil, fmt.Errorf("unknown lattice type: 0x%02x", byte(t))
	}
}
