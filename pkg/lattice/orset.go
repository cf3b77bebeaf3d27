package lattice

import (
	"fmt"
	"sort"
)

// ORSet is an add-wins observed-remove set in delta-state form. The dot store
// maps node -> counter -> element; the causal context records every dot the
// state has seen, including dots whose entries were removed.
type ORSet struct {
	Entries map[uint64]map[uint64]string `msgpack:"entries"`
	Ctx     *CausalContext               `msgpack:"ctx"`
}

// NewORSet creates an empty ORSet.
func NewORSet() *ORSet {
	return &ORSet{
		Entries: make(map[uint64]map[uint64]string),
		Ctx:     NewCausalContext(),
	}
}

func (s *ORSet) Type() Type              { return TypeORSet }
func (s *ORSet) Context() *CausalContext { return s.Ctx }

func (s *ORSet) Bytes() ([]byte, error) { return marshalState(s) }

func (s *ORSet) normalize() {
	if s.Entries == nil {
		s.Entries = make(map[uint64]map[uint64]string)
	}
	if s.Ctx == nil {
		s.Ctx = NewCausalContext()
	}
	s.Ctx.init()
}

func (s *ORSet) put(d Dot, element string) {
	if s.Entries[d.Node] == nil {
		s.Entries[d.Node] = make(map[uint64]string)
	}
	s.Entries[d.Node][d.Counter] = element
}

// dotsOf collects the live dots currently carrying element.
func (s *ORSet) dotsOf(element string) []Dot {
	var dots []Dot
	for node, counters := range s.Entries {
		for c, e := range counters {
			if e == element {
				dots = append(dots, Dot{Node: node, Counter: c})
			}
		}
	}
	return dots
}

// Elements returns the distinct live elements, sorted.
func (s *ORSet) Elements() []string {
	seen := make(map[string]bool)
	for _, counters := range s.Entries {
		for _, e := range counters {
			seen[e] = true
		}
	}
	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether element is live.
func (s *ORSet) Contains(element string) bool {
	for _, counters := range s.Entries {
		for _, e := range counters {
			if e == element {
				return true
			}
		}
	}
	return false
}

// ORSetLattice implements the Lattice capability for ORSet states.
//
// Mutators: "add" (element), "remove" (element), "clear" (no args).
type ORSetLattice struct{}

func (ORSetLattice) Empty() State { return NewORSet() }

func (ORSetLattice) Read(s State) any {
	return s.(*ORSet).Elements()
}

func (ORSetLattice) Mutate(mutator string, args []any, node uint64, s State) (State, error) {
	set := s.(*ORSet)
	delta := NewORSet()

	switch mutator {
	case "add":
		element, err := oneString(args)
		if err != nil {
			return nil, err
		}
		d := set.Ctx.Next(node)
		delta.put(d, element)
		delta.Ctx.Add(d)

	case "remove":
		element, err := oneString(args)
		if err != nil {
			return nil, err
		}
		// The delta claims the observed dots without carrying entries, so
		// joining it retires them.
		for _, d := range set.dotsOf(element) {
			delta.Ctx.Add(d)
		}

	case "clear":
		for node, counters := range set.Entries {
			for c := range counters {
				delta.Ctx.Add(Dot{Node: node, Counter: c})
			}
		}

	default:
		return nil, fmt.Errorf("%w: orset has no mutator %q", ErrUnknownMutator, mutator)
	}

	return delta, nil
}

// Join computes the causal join of two dot stores: an entry survives if both
// sides hold it, or if one side holds it and the other has not observed its
// dot.
func (ORSetLattice) Join(a, b State) State {
	sa, sb := a.(*ORSet), b.(*ORSet)
	out := NewORSet()

	for node, counters := range sa.Entries {
		for c, e := range counters {
			d := Dot{Node: node, Counter: c}
			if _, held := sb.Entries[node][c]; held || !sb.Ctx.Contains(d) {
				out.put(d, e)
			}
		}
	}
	for node, counters := range sb.Entries {
		for c, e := range counters {
			d := Dot{Node: node, Counter: c}
			if _, held := out.Entries[node][c]; held {
				continue
			}
			if !sa.Ctx.Contains(d) {
				out.put(d, e)
			}
		}
	}

	out.Ctx = sa.Ctx.Clone()
	out.Ctx.Join(sb.Ctx)
	return out
}

func (ORSetLattice) Compress(s State) State {
	set := s.(*ORSet)
	set.Ctx.Compact()
	return set
}

func oneString(args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: want one element, got %d args", ErrBadArgs, len(args))
	}
	element, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: element must be a string, got %T", ErrBadArgs, args[0])
	}
	return element, nil
}
