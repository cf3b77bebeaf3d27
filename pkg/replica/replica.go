package replica

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shinyes/deltasync/pkg/lattice"
)

// Replica is the anti-entropy engine for one delta-state CRDT replica. It
// accepts local mutations, exchanges delta intervals with neighbours until
// all replicas converge, and garbage-collects deltas acknowledged by every
// neighbour that has sent an ack.
//
// The replica is a single-goroutine actor: every input is a message on the
// inbox and is processed to completion before the next one. External callers
// interact only through the exported methods and the Endpoint interface.
type Replica struct {
	name   string
	nodeID uint64
	lat    lattice.Lattice
	cfg    Config
	notify *Notify
	log    *zap.Logger

	// Owned by the actor goroutine.
	state      lattice.State
	seq        uint64
	shipped    uint64
	buffer     *deltaBuffer
	neighbours map[string]Endpoint
	acks       map[string]uint64

	inbox chan envelope
	done  chan struct{}

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once

	driver *driver
	stats  replicaStats
}

// New creates a replica. The name and lattice are the only required
// configuration; everything else has defaults.
func New(lat lattice.Lattice, opts ...Option) (*Replica, error) {
	s := settings{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&s)
	}
	s.cfg = s.cfg.withDefaults()

	if s.cfg.Name == "" {
		return nil, ErrMissingName
	}
	if lat == nil {
		return nil, ErrMissingLattice
	}

	log := s.log
	if log == nil {
		log = zap.L()
	}

	r := &Replica{
		name:       s.cfg.Name,
		nodeID:     randomNodeID(),
		lat:        lat,
		cfg:        s.cfg,
		notify:     s.notify,
		log:        log.With(zap.String("replica", s.cfg.Name)),
		state:      lat.Empty(),
		buffer:     newDeltaBuffer(),
		neighbours: make(map[string]Endpoint),
		acks:       make(map[string]uint64),
		inbox:      make(chan envelope, s.cfg.InboxSize),
		done:       make(chan struct{}),
	}
	r.driver = newDriver(r.cfg.ShipInterval, r.cfg.GCInterval, r.postWait)
	return r, nil
}

// Start launches the actor loop and the periodic driver. Cancelling ctx
// stops the driver ticks; the actor itself runs until Stop.
func (r *Replica) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	go r.run()
	r.driver.start(ctx)
	r.log.Debug("replica started", zap.Uint64("node", r.nodeID))
}

// Stop terminates the replica after one final best-effort ship to all
// neighbours. Idempotent; blocks until the actor has exited.
func (r *Replica) Stop() {
	r.stopOnce.Do(func() {
		r.driver.stop()

		r.mu.Lock()
		started := r.started
		r.mu.Unlock()
		if !started {
			close(r.done)
			return
		}

		select {
		case r.inbox <- stopEnv{}:
			<-r.done
		case <-r.done:
		}
	})
}

// Name returns the replica name, which is also its endpoint ID.
func (r *Replica) Name() string { return r.name }

// NodeID returns the random node identity used in causal contexts.
func (r *Replica) NodeID() uint64 { return r.nodeID }

// ID implements Endpoint.
func (r *Replica) ID() string { return r.name }

// Deliver implements Endpoint: peer traffic enters the inbox here. Delivery
// never blocks; when the inbox is saturated the message is dropped, which
// anti-entropy treats as transport loss and repairs on a later ship.
func (r *Replica) Deliver(msg Message) {
	var env envelope
	switch m := msg.(type) {
	case Delta:
		env = deltaEnv{msg: m}
	case Ack:
		env = ackEnv{msg: m}
	default:
		r.log.Debug("dropping unexpected peer message")
		return
	}

	select {
	case r.inbox <- env:
	case <-r.done:
	default:
		r.stats.inboxDropped.Add(1)
		r.log.Debug("inbox saturated, dropping peer message")
	}
}

// Read returns the user-visible value of the current state.
func (r *Replica) Read(ctx context.Context) (any, error) {
	return r.ReadWith(ctx, nil)
}

// ReadWith returns the state projected through a caller-supplied function.
// The projection runs on the actor goroutine and must not retain or mutate
// the state.
func (r *Replica) ReadWith(ctx context.Context, project func(lattice.State) any) (any, error) {
	reply := make(chan any, 1)
	if err := r.postCtx(ctx, readEnv{project: project, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, ErrStopped
	}
}

// Apply runs a named mutator against the local state and waits for it to be
// applied. The resulting delta is buffered for shipment; nothing is sent
// inline.
func (r *Replica) Apply(ctx context.Context, mutator string, args ...any) error {
	reply := make(chan error, 1)
	if err := r.postCtx(ctx, opEnv{mutator: mutator, args: args, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// ApplyAsync enqueues a mutation without waiting for it to be applied.
// Mutator errors are logged, not returned.
func (r *Replica) ApplyAsync(mutator string, args ...any) {
	_ = r.postWait(opEnv{mutator: mutator, args: args})
}

// AddNeighbour registers one peer endpoint for anti-entropy. Idempotent.
func (r *Replica) AddNeighbour(ep Endpoint) error {
	return r.AddNeighbours(ep)
}

// AddNeighbours registers peer endpoints for anti-entropy. Idempotent.
func (r *Replica) AddNeighbours(eps ...Endpoint) error {
	return r.postWait(addNeighboursEnv{endpoints: eps})
}

// Info returns a consistent snapshot of the actor state.
func (r *Replica) Info(ctx context.Context) (Info, error) {
	reply := make(chan Info, 1)
	if err := r.postCtx(ctx, infoEnv{reply: reply}); err != nil {
		return Info{}, err
	}
	select {
	case info := <-reply:
		return info, nil
	case <-ctx.Done():
		return Info{}, ctx.Err()
	case <-r.done:
		return Info{}, ErrStopped
	}
}

func (r *Replica) postWait(env envelope) error {
	select {
	case r.inbox <- env:
		return nil
	case <-r.done:
		return ErrStopped
	}
}

func (r *Replica) postCtx(ctx context.Context, env envelope) error {
	select {
	case r.inbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// run is the actor loop. It owns every field in the state section and exits
// only on stop, after a final best-effort ship.
func (r *Replica) run() {
	defer close(r.done)
	for {
		switch m := (<-r.inbox).(type) {
		case opEnv:
			r.handleOp(m)
		case deltaEnv:
			r.handleDelta(m.msg)
		case ackEnv:
			r.handleAck(m.msg)
		case readEnv:
			r.handleRead(m)
		case addNeighboursEnv:
			r.handleAddNeighbours(m.endpoints)
		case tryShipEnv:
			r.handleTryShip()
		case shipEnv:
			r.handleShip(m.snapshot)
		case gcEnv:
			r.handleGC()
		case infoEnv:
			m.reply <- r.snapshotInfo()
		case stopEnv:
			r.shipIntervalOrState()
			r.log.Debug("replica stopped", zap.Uint64("seq", r.seq))
			return
		}
	}
}

func (r *Replica) handleOp(m opEnv) {
	delta, err := r.lat.Mutate(m.mutator, m.args, r.nodeID, r.state)
	if err != nil {
		r.log.Debug("mutator failed", zap.String("mutator", m.mutator), zap.Error(err))
		if m.reply != nil {
			m.reply <- err
		}
		return
	}

	r.state = r.lat.Compress(r.lat.Join(r.state, delta))
	r.buffer.put(r.seq, r, delta)
	r.seq++
	r.stats.opsApplied.Add(1)

	if m.reply != nil {
		m.reply <- nil
	}
}

func (r *Replica) handleDelta(d Delta) {
	if d.Payload == nil {
		return
	}

	if !admissible(r.state.Context(), d.Payload.Context()) {
		r.stats.deltasRejected.Add(1)
		r.log.Debug("rejected causally premature delta interval",
			zap.Uint64("remoteSeq", d.Seq))
		return
	}

	r.state = r.lat.Compress(r.lat.Join(r.state, d.Payload))
	r.buffer.put(r.seq, d.Origin, d.Payload)
	r.seq++
	r.stats.deltasAccepted.Add(1)

	if d.Origin != nil {
		d.Origin.Deliver(Ack{From: r, Seq: d.Seq})
	}
}

func (r *Replica) handleAck(a Ack) {
	if a.From == nil {
		return
	}
	r.stats.acksReceived.Add(1)
	// Monotone max: reordered acks never regress the map.
	if id := a.From.ID(); a.Seq > r.acks[id] {
		r.acks[id] = a.Seq
	}
}

func (r *Replica) handleRead(m readEnv) {
	if m.project != nil {
		m.reply <- m.project(r.state)
		return
	}
	m.reply <- r.lat.Read(r.state)
}

func (r *Replica) handleAddNeighbours(eps []Endpoint) {
	for _, ep := range eps {
		if ep == nil || ep.ID() == r.name {
			continue
		}
		r.neighbours[ep.ID()] = ep
	}
}

// handleTryShip defers the actual ship by the debounce delay so a burst of
// mutations coalesces into one shipment. The snapshot pins the sequence
// number at tick time.
func (r *Replica) handleTryShip() {
	if r.shipped == r.seq {
		return
	}

	snapshot := r.seq
	time.AfterFunc(r.cfg.ShipDebounce, func() {
		select {
		case r.inbox <- shipEnv{snapshot: snapshot}:
		case <-r.done:
		}
	})
}

// handleShip ships when the backlog has outrun the bound (force) or when the
// system quiesced at the snapshot. Anything else is dropped: a fresher
// snapshot always follows from the next try-ship tick, and deferring instead
// would cause ship storms.
func (r *Replica) handleShip(snapshot uint64) {
	force := snapshot > r.shipped+r.cfg.ShipBacklogMax
	quiesced := snapshot == r.seq
	if !force && !quiesced {
		r.stats.shipsDropped.Add(1)
		return
	}

	r.shipIntervalOrState()
	r.shipped = snapshot

	if r.notify != nil && r.notify.Target != nil {
		r.notify.Target.Deliver(Signal{Payload: r.notify.Payload})
	}
}

// handleGC prunes every buffered delta below the lowest neighbour ack. A
// neighbour that has never acked keeps the floor at zero only if no
// neighbour has acked at all; silent neighbours are repaired by full-state
// ships once the buffer has moved past them.
func (r *Replica) handleGC() {
	if len(r.neighbours) == 0 {
		return
	}

	var floor uint64
	found := false
	for id := range r.neighbours {
		if ack, ok := r.acks[id]; ok && (!found || ack < floor) {
			floor = ack
			found = true
		}
	}
	if !found {
		floor = 0
	}

	pruned := r.buffer.prune(floor)
	r.stats.gcRuns.Add(1)
	if pruned > 0 {
		r.stats.deltasPruned.Add(uint64(pruned))
		r.log.Debug("pruned acked deltas",
			zap.Int("pruned", pruned), zap.Uint64("floor", floor))
	}
}

func (r *Replica) snapshotInfo() Info {
	neighbours := make([]string, 0, len(r.neighbours))
	for id := range r.neighbours {
		neighbours = append(neighbours, id)
	}
	sort.Strings(neighbours)

	acks := make(map[string]uint64, len(r.acks))
	for id, seq := range r.acks {
		acks[id] = seq
	}

	info := Info{
		Name:       r.name,
		NodeID:     r.nodeID,
		Seq:        r.seq,
		Shipped:    r.shipped,
		BufferLen:  r.buffer.len(),
		Neighbours: neighbours,
		Acks:       acks,
	}
	if r.buffer.len() > 0 {
		info.BufferMin = r.buffer.min()
	}
	return info
}

// randomNodeID draws 64 bits from the CSPRNG; uniqueness across the cluster
// holds with high probability.
func randomNodeID() uint64 {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic(err)
		}
		if id := binary.LittleEndian.Uint64(b[:]); id != 0 {
			return id
		}
	}
}
