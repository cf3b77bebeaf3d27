package replica

import "github.com/shinyes/deltasync/pkg/lattice"

// Message is the peer-visible traffic between replicas, plus the Signal
// shipped to a notify target.
type Message interface {
	isMessage()
}

// Delta carries either a delta interval or a full state; the two are
// indistinguishable to the receiver. Seq is the sender's sequence number at
// ship time and is what the ack quotes back. Origin is the endpoint the ack
// is sent to.
type Delta struct {
	Origin  Endpoint
	Payload lattice.State
	Seq     uint64
}

// Ack acknowledges receipt of a Delta: Seq quotes the Delta's Seq, so the
// acked replica knows every delta it numbered below Seq has arrived. From is
// the replica sending the ack.
type Ack struct {
	From Endpoint
	Seq  uint64
}

// Signal is delivered to the configured notify endpoint after each
// successful outbound ship.
type Signal struct {
	Payload any
}

func (Delta) isMessage()  {}
func (Ack) isMessage()    {}
func (Signal) isMessage() {}

// inbox messages

type envelope interface {
	isEnvelope()
}

type deltaEnv struct{ msg Delta }
type ackEnv struct{ msg Ack }

type opEnv struct {
	mutator string
	args    []any
	reply   chan error // nil for async application
}

type readEnv struct {
	project func(lattice.State) any
	reply   chan any
}

type addNeighboursEnv struct {
	endpoints []Endpoint
}

type tryShipEnv struct{}

type shipEnv struct {
	snapshot uint64
}

type gcEnv struct{}

type infoEnv struct {
	reply chan Info
}

type stopEnv struct{}

func (deltaEnv) isEnvelope()         {}
func (ackEnv) isEnvelope()           {}
func (opEnv) isEnvelope()            {}
func (readEnv) isEnvelope()          {}
func (addNeighboursEnv) isEnvelope() {}
func (tryShipEnv) isEnvelope()       {}
func (shipEnv) isEnvelope()          {}
func (gcEnv) isEnvelope()            {}
func (infoEnv) isEnvelope()          {}
func (stopEnv) isEnvelope()          {}
