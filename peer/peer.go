// Package peer owns the set of active per-peer connection objects. Creation,
// teardown and lookup live here; the signaling coordinator references peers
// by identity only.
package peer

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"voicemesh/media"
	"voicemesh/participant"
)

// State is the negotiation lifecycle of one peer connection.
type State int

// Lifecycle states. Closed and Failed are terminal; a new Peer must be
// created if the participant rejoins.
const (
	New State = iota
	AwaitingOffer
	AwaitingAnswer
	NegotiatingRemote
	Connected
	Failed
	Closed
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case New:
		return "new"
	case AwaitingOffer:
		return "awaiting-offer"
	case AwaitingAnswer:
		return "awaiting-answer"
	case NegotiatingRemote:
		return "negotiating-remote"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Failed || s == Closed
}

// Peer is the connection toward one remote participant. All mutation happens
// on the coordinator's dispatch goroutine; the Manager only guards the map.
// The state field is atomic so other goroutines may observe it.
type Peer struct {
	id        participant.ID
	conn      media.Connection
	state     atomic.Int32
	pending   []media.Candidate
	remoteSet bool
}

func newPeer(id participant.ID, conn media.Connection) *Peer {
	return &Peer{
		id:   id,
		conn: conn,
	}
}

// ID returns the remote participant identity.
func (p *Peer) ID() participant.ID {
	return p.id
}

// Conn returns the underlying transport connection.
func (p *Peer) Conn() media.Connection {
	return p.conn
}

// State returns the current lifecycle state.
func (p *Peer) State() State {
	return State(p.state.Load())
}

// SetState transitions the lifecycle. Transitions out of a terminal state are
// ignored.
func (p *Peer) SetState(s State) {
	if p.State().Terminal() {
		return
	}
	p.state.Store(int32(s))
}

// RemoteSet reports whether the remote description has been applied.
func (p *Peer) RemoteSet() bool {
	return p.remoteSet
}

// BufferCandidate queues a candidate that arrived before the remote
// description was set.
func (p *Peer) BufferCandidate(c media.Candidate) {
	p.pending = append(p.pending, c)
}

// MarkRemoteSet records that the remote description is applied and returns
// the buffered candidates in arrival order. The buffer is emptied; the
// pending queue is only non-empty while the remote description is unset.
func (p *Peer) MarkRemoteSet() []media.Candidate {
	p.remoteSet = true
	drained := p.pending
	p.pending = nil
	return drained
}

// close releases the transport and marks the peer terminal.
func (p *Peer) close() {
	p.state.Store(int32(Closed))
	p.pending = nil
	if err := p.conn.Close(); err != nil {
		log.Debug().Err(err).Stringer("peer", p.id).Msg("failed to close connection")
	}
}
