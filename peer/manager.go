package peer

import (
	"errors"
	"fmt"
	"sync"

	"voicemesh/media"
	"voicemesh/participant"
)

// ErrPeerAlreadyExists is returned when a second connection is created for
// the same identity.
var ErrPeerAlreadyExists = errors.New("peer already exists")

// Manager is pure bookkeeping over the active peer set, keyed by numeric
// identity. It guarantees at most one connection object per identity and
// that closing releases transport resources before removal.
type Manager struct {
	mu    sync.RWMutex
	peers map[uint64]*Peer
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		peers: make(map[uint64]*Peer),
	}
}

// Create registers a new peer. The connection handle must already exist so
// that signaling messages arriving mid-negotiation always find a home.
func (m *Manager) Create(id participant.ID, conn media.Connection) (*Peer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.peers[id.Num]; exists {
		return nil, fmt.Errorf("%s: %w", id, ErrPeerAlreadyExists)
	}
	p := newPeer(id, conn)
	m.peers[id.Num] = p
	return p, nil
}

// Get looks up a peer by numeric identity.
func (m *Manager) Get(num uint64) (*Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[num]
	return p, ok
}

// CloseAndRemove closes the peer's transport and discards it. It reports
// whether a peer existed.
func (m *Manager) CloseAndRemove(num uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[num]
	if !ok {
		return false
	}
	p.close()
	delete(m.peers, num)
	return true
}

// CloseAll closes every peer and empties the set. Used on leave/teardown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for num, p := range m.peers {
		p.close()
		delete(m.peers, num)
	}
}

// Count returns the number of active peers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}
