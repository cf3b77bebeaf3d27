package replica

import "github.com/shinyes/deltasync/pkg/lattice"

// bufferEntry records who produced a delta so shipping can avoid echoing a
// neighbour's own delta back to it.
type bufferEntry struct {
	origin Endpoint
	delta  lattice.State
}

// deltaBuffer is the ordered mapping from sequence number to buffered delta.
// It is owned by the replica actor; no locking.
type deltaBuffer struct {
	entries map[uint64]bufferEntry
}

func newDeltaBuffer() *deltaBuffer {
	return &deltaBuffer{entries: make(map[uint64]bufferEntry)}
}

func (b *deltaBuffer) len() int {
	return len(b.entries)
}

// put records a delta under the given sequence number.
func (b *deltaBuffer) put(seq uint64, origin Endpoint, delta lattice.State) {
	b.entries[seq] = bufferEntry{origin: origin, delta: delta}
}

// min returns the smallest buffered sequence number. Only meaningful when the
// buffer is non-empty.
func (b *deltaBuffer) min() uint64 {
	var min uint64
	first := true
	for seq := range b.entries {
		if first || seq < min {
			min = seq
			first = false
		}
	}
	return min
}

// interval returns the deltas with sequence numbers in [lo, hi) whose origin
// is not exclude. Order does not matter to the caller: the join is
// commutative.
func (b *deltaBuffer) interval(lo, hi uint64, exclude string) []lattice.State {
	var out []lattice.State
	for seq, e := range b.entries {
		if seq < lo || seq >= hi {
			continue
		}
		if e.origin != nil && e.origin.ID() == exclude {
			continue
		}
		out = append(out, e.delta)
	}
	return out
}

// prune drops every entry below floor and returns how many were removed.
func (b *deltaBuffer) prune(floor uint64) int {
	removed := 0
	for seq := range b.entries {
		if seq < floor {
			delete(b.entries, seq)
			removed++
		}
	}
	return removed
}
