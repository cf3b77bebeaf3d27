package replica

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shinyes/deltasync/pkg/lattice"
)

// recorder is an endpoint that captures everything delivered to it.
type recorder struct {
	id   string
	mu   sync.Mutex
	msgs []Message
}

func (c *recorder) ID() string { return c.id }

func (c *recorder) Deliver(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *recorder) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.msgs...)
}

func (c *recorder) deltas() []Delta {
	var out []Delta
	for _, m := range c.messages() {
		if d, ok := m.(Delta); ok {
			out = append(out, d)
		}
	}
	return out
}

func (c *recorder) acks() []Ack {
	var out []Ack
	for _, m := range c.messages() {
		if a, ok := m.(Ack); ok {
			out = append(out, a)
		}
	}
	return out
}

func (c *recorder) signals() []Signal {
	var out []Signal
	for _, m := range c.messages() {
		if s, ok := m.(Signal); ok {
			out = append(out, s)
		}
	}
	return out
}

// newTestReplica builds an unstarted replica with fast timers. Handler-level
// tests drive it directly; scenario tests Start it.
func newTestReplica(t *testing.T, name string, opts ...Option) *Replica {
	t.Helper()
	base := []Option{
		WithName(name),
		WithShipInterval(5 * time.Millisecond),
		WithShipDebounce(time.Millisecond),
		WithGCInterval(20 * time.Millisecond),
		WithLogger(zap.NewNop()),
	}
	r, err := New(lattice.ORSetLattice{}, append(base, opts...)...)
	require.NoError(t, err)
	return r
}

func startReplica(t *testing.T, r *Replica) {
	t.Helper()
	r.Start(context.Background())
	t.Cleanup(r.Stop)
}

// connect registers both replicas as each other's neighbours.
func connect(t *testing.T, a, b *Replica) {
	t.Helper()
	require.NoError(t, a.AddNeighbour(b))
	require.NoError(t, b.AddNeighbour(a))
}

func applyN(t *testing.T, r *Replica, mutator string, args ...any) {
	t.Helper()
	require.NoError(t, r.Apply(context.Background(), mutator, args...))
}

func readSet(t *testing.T, r *Replica) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := r.Read(ctx)
	require.NoError(t, err)
	return v.([]string)
}

func setEquals(r *Replica, want []string) func() bool {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		v, err := r.Read(ctx)
		if err != nil {
			return false
		}
		got := v.([]string)
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}
}

func mustInfo(t *testing.T, r *Replica) Info {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	info, err := r.Info(ctx)
	require.NoError(t, err)
	return info
}
