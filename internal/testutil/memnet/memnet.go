// Package memnet is an in-memory transport connecting replicas by name.
// Every message round-trips through the wire codec, delivery is asynchronous
// with FIFO order per destination, and endpoints can be taken down to model
// transport loss.
package memnet

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shinyes/deltasync/pkg/replica"
	"github.com/shinyes/deltasync/pkg/wire"
)

const defaultQueueSize = 256

var (
	ErrAlreadyBound = errors.New("address already bound")
	ErrClosed       = errors.New("network closed")
)

// Network routes encoded envelopes between joined replicas.
type Network struct {
	mu     sync.RWMutex
	nodes  map[string]*node
	closed bool
	log    *zap.Logger
}

type node struct {
	replica   *replica.Replica
	queue     chan []byte
	down      atomic.Bool
	closeOnce sync.Once
	closedCh  chan struct{}
}

// New creates an empty network.
func New() *Network {
	return &Network{
		nodes: make(map[string]*node),
		log:   zap.L().Named("memnet"),
	}
}

// Join binds a replica under its name and starts its delivery pump.
func (n *Network) Join(r *replica.Replica) error {
	addr := r.Name()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	if _, ok := n.nodes[addr]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, addr)
	}

	nd := &node{
		replica:  r,
		queue:    make(chan []byte, defaultQueueSize),
		closedCh: make(chan struct{}),
	}
	n.nodes[addr] = nd
	go n.pump(nd)
	return nil
}

// Endpoint returns an endpoint addressing addr over this network. The
// endpoint is valid before addr joins; sends to an unbound address are
// dropped.
func (n *Network) Endpoint(addr string) replica.Endpoint {
	return &proxy{net: n, addr: addr}
}

// SetDown marks an address unreachable (or reachable again). Messages sent
// to a down address are dropped.
func (n *Network) SetDown(addr string, down bool) {
	n.mu.RLock()
	nd, ok := n.nodes[addr]
	n.mu.RUnlock()
	if ok {
		nd.down.Store(down)
	}
}

// Close stops all delivery pumps.
func (n *Network) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	for _, nd := range n.nodes {
		nd.closeOnce.Do(func() { close(nd.closedCh) })
	}
}

func (n *Network) send(dst string, raw []byte) {
	n.mu.RLock()
	nd, ok := n.nodes[dst]
	n.mu.RUnlock()

	if !ok || nd.down.Load() {
		n.log.Debug("dropping message to unreachable address", zap.String("dst", dst))
		return
	}

	select {
	case nd.queue <- raw:
	case <-nd.closedCh:
	default:
		n.log.Debug("queue full, dropping message", zap.String("dst", dst))
	}
}

func (n *Network) pump(nd *node) {
	for {
		select {
		case <-nd.closedCh:
			return
		case raw := <-nd.queue:
			n.deliver(nd, raw)
		}
	}
}

func (n *Network) deliver(nd *node, raw []byte) {
	env, err := wire.Unmarshal(raw)
	if err != nil {
		n.log.Debug("dropping undecodable message", zap.Error(err))
		return
	}

	switch env.Kind {
	case wire.KindDelta:
		payload, err := env.DecodePayload()
		if err != nil {
			n.log.Debug("dropping delta with bad payload",
				zap.String("msgId", env.MsgID), zap.Error(err))
			return
		}
		nd.replica.Deliver(replica.Delta{
			Origin:  n.Endpoint(env.Origin),
			Payload: payload,
			Seq:     env.Seq,
		})
	case wire.KindAck:
		nd.replica.Deliver(replica.Ack{
			From: n.Endpoint(env.From),
			Seq:  env.Seq,
		})
	default:
		n.log.Debug("dropping envelope of unknown kind", zap.Uint8("kind", env.Kind))
	}
}

// proxy is the sending side of one address.
type proxy struct {
	net  *Network
	addr string
}

func (p *proxy) ID() string { return p.addr }

func (p *proxy) Deliver(msg replica.Message) {
	var env *wire.Envelope

	switch m := msg.(type) {
	case replica.Delta:
		origin := ""
		if m.Origin != nil {
			origin = m.Origin.ID()
		}
		e, err := wire.EncodeDelta(uuid.NewString(), origin, origin, m.Seq, m.Payload)
		if err != nil {
			p.net.log.Debug("failed to encode delta", zap.Error(err))
			return
		}
		env = e
	case replica.Ack:
		from := ""
		if m.From != nil {
			from = m.From.ID()
		}
		env = wire.EncodeAck(uuid.NewString(), from, m.Seq)
	default:
		// Signals and the like stay local.
		return
	}

	raw, err := wire.Marshal(env)
	if err != nil {
		p.net.log.Debug("failed to marshal envelope", zap.Error(err))
		return
	}
	p.net.send(p.addr, raw)
}
