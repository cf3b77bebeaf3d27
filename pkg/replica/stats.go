package replica

import "sync/atomic"

type replicaStats struct {
	opsApplied     atomic.Uint64
	deltasAccepted atomic.Uint64
	deltasRejected atomic.Uint64
	acksReceived   atomic.Uint64
	intervalShips  atomic.Uint64
	stateShips     atomic.Uint64
	shipsDropped   atomic.Uint64
	gcRuns         atomic.Uint64
	deltasPruned   atomic.Uint64
	inboxDropped   atomic.Uint64
}

// Stats is a snapshot of replica runtime counters.
type Stats struct {
	OpsApplied     uint64
	DeltasAccepted uint64
	DeltasRejected uint64
	AcksReceived   uint64
	IntervalShips  uint64
	StateShips     uint64
	ShipsDropped   uint64
	GCRuns         uint64
	DeltasPruned   uint64
	InboxDropped   uint64
}

// Stats returns runtime counters. Safe to call from any goroutine.
func (r *Replica) Stats() Stats {
	return Stats{
		OpsApplied:     r.stats.opsApplied.Load(),
		DeltasAccepted: r.stats.deltasAccepted.Load(),
		DeltasRejected: r.stats.deltasRejected.Load(),
		AcksReceived:   r.stats.acksReceived.Load(),
		IntervalShips:  r.stats.intervalShips.Load(),
		StateShips:     r.stats.stateShips.Load(),
		ShipsDropped:   r.stats.shipsDropped.Load(),
		GCRuns:         r.stats.gcRuns.Load(),
		DeltasPruned:   r.stats.deltasPruned.Load(),
		InboxDropped:   r.stats.inboxDropped.Load(),
	}
}

// Info is a consistent snapshot of the actor state, taken on the actor
// goroutine.
type Info struct {
	Name       string
	NodeID     uint64
	Seq        uint64
	Shipped    uint64
	BufferLen  int
	BufferMin  uint64
	Neighbours []string
	Acks       map[string]uint64
}
