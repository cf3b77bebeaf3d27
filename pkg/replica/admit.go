package replica

import "github.com/shinyes/deltasync/pkg/lattice"

// admissible decides whether an inbound delta interval may be joined into the
// local state. For every node the interval claims dots from, the interval's
// smallest claimed dot must not skip past the local contiguous prefix: a gap
// would break the per-node causal prefix the context's compaction relies on.
//
// A full state always passes because its context claims every dot from 1.
// Nodes the local state has never heard of are admitted as-is; the interval
// is the first word from them.
func admissible(local, incoming *lattice.CausalContext) bool {
	for _, node := range incoming.Nodes() {
		lastKnown, known := local.Maxima[node]
		if !known || lastKnown == 0 {
			continue
		}
		if firstNew := incoming.First(node); lastKnown+1 < firstNew {
			return false
		}
	}
	return true
}
