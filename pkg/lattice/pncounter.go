package lattice

import "fmt"

// PNCounter is a positive-negative counter in delta-state form. Inc and Dec
// hold per-node running totals and join by per-node max, so a delta only
// needs to carry the mutating node's new total.
type PNCounter struct {
	Inc map[uint64]int64 `msgpack:"inc"`
	Dec map[uint64]int64 `msgpack:"dec"`
	Ctx *CausalContext   `msgpack:"ctx"`
}

// NewPNCounter creates a zero counter.
func NewPNCounter() *PNCounter {
	return &PNCounter{
		Inc: make(map[uint64]int64),
		Dec: make(map[uint64]int64),
		Ctx: NewCausalContext(),
	}
}

func (c *PNCounter) Type() Type              { return TypePNCounter }
func (c *PNCounter) Context() *CausalContext { return c.Ctx }

func (c *PNCounter) Bytes() ([]byte, error) { return marshalState(c) }

func (c *PNCounter) normalize() {
	if c.Inc == nil {
		c.Inc = make(map[uint64]int64)
	}
	if c.Dec == nil {
		c.Dec = make(map[uint64]int64)
	}
	if c.Ctx == nil {
		c.Ctx = NewCausalContext()
	}
	c.Ctx.init()
}

// Total returns the counter value.
func (c *PNCounter) Total() int64 {
	var total int64
	for _, v := range c.Inc {
		total += v
	}
	for _, v := range c.Dec {
		total -= v
	}
	return total
}

// PNCounterLattice implements the Lattice capability for PNCounter states.
//
// Mutators: "inc" and "dec", each taking one int64 amount (default 1 when no
// args are given).
type PNCounterLattice struct{}

func (PNCounterLattice) Empty() State { return NewPNCounter() }

func (PNCounterLattice) Read(s State) any {
	return s.(*PNCounter).Total()
}

func (PNCounterLattice) Mutate(mutator string, args []any, node uint64, s State) (State, error) {
	counter := s.(*PNCounter)

	amount, err := amountArg(args)
	if err != nil {
		return nil, err
	}
	if amount < 0 {
		// A negative amount would regress a per-node total and break the
		// max-join. Callers decrement via "dec".
		return nil, fmt.Errorf("%w: amount must be non-negative", ErrBadArgs)
	}

	delta := NewPNCounter()
	switch mutator {
	case "inc":
		delta.Inc[node] = counter.Inc[node] + amount
	case "dec":
		delta.Dec[node] = counter.Dec[node] + amount
	default:
		return nil, fmt.Errorf("%w: pncounter has no mutator %q", ErrUnknownMutator, mutator)
	}
	delta.Ctx.Add(counter.Ctx.Next(node))
	return delta, nil
}

func (PNCounterLattice) Join(a, b State) State {
	ca, cb := a.(*PNCounter), b.(*PNCounter)
	out := NewPNCounter()
	maxMerge(out.Inc, ca.Inc)
	maxMerge(out.Inc, cb.Inc)
	maxMerge(out.Dec, ca.Dec)
	maxMerge(out.Dec, cb.Dec)
	out.Ctx = ca.Ctx.Clone()
	out.Ctx.Join(cb.Ctx)
	return out
}

func (PNCounterLattice) Compress(s State) State {
	counter := s.(*PNCounter)
	counter.Ctx.Compact()
	return counter
}

func maxMerge(dst, src map[uint64]int64) {
	for node, v := range src {
		if v > dst[node] {
			dst[node] = v
		}
	}
}

func amountArg(args []any) (int64, error) {
	switch len(args) {
	case 0:
		return 1, nil
	case 1:
		switch v := args[0].(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		default:
			return 0, fmt.Errorf("%w: amount must be an integer, got %T", ErrBadArgs, args[0])
		}
	default:
		return 0, fmt.Errorf("%w: want at most one amount, got %d args", ErrBadArgs, len(args))
	}
}
