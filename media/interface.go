// Package media wraps the point-to-point transport primitive behind an opaque
// engine interface. The coordinator only ever sees offers, answers and
// candidates as payloads to route; encoding and NAT traversal live below this
// boundary.
package media

// ConnState is the connectivity lifecycle of a single connection as reported
// by the engine.
type ConnState int

// Connection states.
const (
	StateConnecting ConnState = iota
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

// String returns the state name for logs.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Candidate is a proposed network path for establishing direct connectivity.
// The coordinator passes it through unmodified.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Track is an opaque handle to a local media track shared read-only across
// connections.
type Track interface {
	ID() string
}

// Connection is a single point-to-point transport toward one remote peer.
//
//go:generate mockgen -destination=mock_connection.go -package=media . Connection
type Connection interface {
	// AddTrack attaches the shared local track to this connection.
	AddTrack(t Track) error

	// CreateOffer produces a session description for the initiating side.
	CreateOffer() (string, error)

	// CreateAnswer accepts the remote offer and produces the responding
	// session description. The remote description is set once this returns.
	CreateAnswer(remoteSDP string) (string, error)

	// SetRemoteAnswer accepts the remote answer on the initiating side.
	SetRemoteAnswer(sdp string) error

	// AddCandidate applies a remote candidate. The remote description must be
	// set first; the caller buffers candidates that arrive early.
	AddCandidate(c Candidate) error

	// OnCandidate registers the callback for locally gathered candidates.
	OnCandidate(fn func(Candidate))

	// OnStateChange registers the connectivity lifecycle callback.
	OnStateChange(fn func(ConnState))

	// Close releases all transport resources held by the connection.
	Close() error
}

// Engine creates connections.
//
//go:generate mockgen -destination=mock_engine.go -package=media . Engine
type Engine interface {
	NewConnection() (Connection, error)
}

// Capturer is the locally acquired audio source: one track shared by every
// peer connection plus a live level estimate for the speaking detector.
type Capturer interface {
	Track() Track
	Level() float64
	SetMuted(muted bool)
	Close() error
}
