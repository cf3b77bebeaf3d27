package replica

// shipIntervalOrState sends each neighbour what it is missing: the join of
// the buffered deltas past its last ack, or the full current state when the
// buffer no longer reaches back that far. Deltas the neighbour itself
// produced are excluded so it never receives its own updates back.
func (r *Replica) shipIntervalOrState() {
	for id, n := range r.neighbours {
		remoteAcked := r.acks[id]

		if r.buffer.len() == 0 || r.buffer.min() > remoteAcked {
			// The deltas the neighbour is missing have been pruned; only a
			// full state can recover it, and a full state is always
			// admissible.
			n.Deliver(Delta{Origin: r, Payload: r.state, Seq: r.seq})
			r.stats.stateShips.Add(1)
			continue
		}

		candidates := r.buffer.interval(remoteAcked, r.seq, id)
		if len(candidates) == 0 {
			continue
		}
		if remoteAcked >= r.seq {
			continue
		}

		interval := candidates[0]
		for _, delta := range candidates[1:] {
			interval = r.lat.Join(interval, delta)
		}
		n.Deliver(Delta{Origin: r, Payload: interval, Seq: r.seq})
		r.stats.intervalShips.Add(1)
	}
}
