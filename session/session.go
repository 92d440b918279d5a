// Package session owns the lifecycle of the local participant's channel
// membership: joining, leaving, and the local mute/deafen flags.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog/log"

	"voicemesh/broker"
	"voicemesh/coordinator"
	"voicemesh/database"
	"voicemesh/media"
	"voicemesh/metric"
	"voicemesh/participant"
	"voicemesh/peer"
	"voicemesh/relay"
	"voicemesh/roster"
	"voicemesh/speaking"
)

var (
	// ErrAlreadyInSession is returned when joining while a session is active.
	ErrAlreadyInSession = errors.New("already in a session")

	// ErrNoActiveSession is returned when acting without a session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrMediaAccess is returned when the capture device cannot be acquired.
	ErrMediaAccess = errors.New("failed to access capture device")
)

// AcquireFunc opens the local capture device.
type AcquireFunc func() (media.Capturer, error)

// Controller coordinates everything one joined channel needs: the capture
// device, the peer set, the signaling coordinator, and speaking detection.
// One session is active at a time.
type Controller struct {
	broker   *broker.Broker
	db       database.Database
	relay    relay.Relay
	engine   media.Engine
	metrics  *metric.Metrics
	speakCfg speaking.Config
	acquire  AcquireFunc
	local    participant.ID

	mu     sync.Mutex
	active *activeSession
}

// activeSession bundles the parts torn down together on leave.
type activeSession struct {
	id          string
	channelID   string
	capture     media.Capturer
	tracker     *roster.Tracker
	peers       *peer.Manager
	coordinator *coordinator.Coordinator
	detector    *speaking.Detector
}

// New creates a new Controller instance.
func New(b *broker.Broker, db database.Database, rly relay.Relay, engine media.Engine,
	metrics *metric.Metrics, speakCfg speaking.Config, acquire AcquireFunc, local participant.ID,
) *Controller {
	return &Controller{
		broker:   b,
		db:       db,
		relay:    rly,
		engine:   engine,
		metrics:  metrics,
		speakCfg: speakCfg,
		acquire:  acquire,
		local:    local,
	}
}

// Join enters a channel. The capture device is acquired first; without it
// there is nothing to share and the join is refused.
func (c *Controller) Join(channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return fmt.Errorf("%w: channel %s", ErrAlreadyInSession, c.active.channelID)
	}

	// 01. Acquire the capture device before touching any shared state.
	capture, err := c.acquire()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaAccess, err)
	}

	// 02. Record the session.
	sessionID := shortuuid.New()
	if _, err := c.db.CreateSessionInfo(sessionID, channelID, c.local); err != nil {
		closeCapture(capture)
		return fmt.Errorf("failed to create session: %w", err)
	}

	// 03. Start the signaling coordinator and wait until it is subscribed,
	// so the roster snapshot triggered below cannot be lost.
	tracker := roster.NewTracker(c.db)
	peers := peer.NewManager()
	coord := coordinator.New(c.broker, tracker, peers, c.relay, c.engine, c.metrics,
		c.local, channelID, capture.Track())
	go coord.Start()
	<-coord.Ready()

	// 04. Start speaking detection against the live capture.
	detector := speaking.NewDetector(c.speakCfg, capture, func(on bool) {
		c.metrics.SetLocalSpeaking(on)
		if err := c.relay.SpeakingChanged(on); err != nil {
			log.Warn().Err(err).Msg("failed to publish speaking change")
		}
	})
	detector.Start()

	active := &activeSession{
		id:          sessionID,
		channelID:   channelID,
		capture:     capture,
		tracker:     tracker,
		peers:       peers,
		coordinator: coord,
		detector:    detector,
	}

	// 05. Announce ourselves; the relay responds with the roster snapshot.
	if err := c.relay.JoinChannel(channelID); err != nil {
		c.teardown(active)
		return fmt.Errorf("failed to join channel: %w", err)
	}

	c.active = active
	log.Info().Str("channel", channelID).Str("session", sessionID).Msg("joined channel")
	return nil
}

// Leave exits the current channel and releases everything Join acquired.
// Leaving with no active session is a no-op.
func (c *Controller) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}

	if err := c.relay.LeaveChannel(c.active.channelID); err != nil {
		log.Warn().Err(err).Str("channel", c.active.channelID).Msg("failed to announce departure")
	}
	c.teardown(c.active)
	log.Info().Str("channel", c.active.channelID).Msg("left channel")
	c.active = nil
	return nil
}

// teardown stops the session parts in dependency order. The capture track is
// released only after every peer holding it is closed.
func (c *Controller) teardown(s *activeSession) {
	s.coordinator.Stop()
	s.peers.CloseAll()
	s.detector.Stop()
	closeCapture(s.capture)

	if err := s.tracker.Clear(s.channelID); err != nil {
		log.Warn().Err(err).Str("channel", s.channelID).Msg("failed to clear roster")
	}
	if err := c.db.DeleteSessionInfo(); err != nil && !errors.Is(err, database.ErrSessionNotFound) {
		log.Warn().Err(err).Msg("failed to delete session")
	}
}

// ToggleMute flips the local mute flag and returns the new value. Muting
// gates both the outgoing audio and the speaking indicator.
func (c *Controller) ToggleMute() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return false, ErrNoActiveSession
	}

	info, err := c.db.FindSessionInfo()
	if err != nil {
		return false, fmt.Errorf("failed to find session: %w", err)
	}
	muted := !info.Muted
	if _, err := c.db.UpdateSessionFlags(muted, info.Deafened); err != nil {
		return false, fmt.Errorf("failed to update session flags: %w", err)
	}

	c.active.capture.SetMuted(muted)
	c.active.detector.SetMuted(muted)
	if err := c.relay.SetMute(muted); err != nil {
		log.Warn().Err(err).Msg("failed to publish mute flag")
	}
	return muted, nil
}

// ToggleDeafen flips the local deafen flag and returns the new value. The
// flag is advisory; it never tears down connections.
func (c *Controller) ToggleDeafen() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return false, ErrNoActiveSession
	}

	info, err := c.db.FindSessionInfo()
	if err != nil {
		return false, fmt.Errorf("failed to find session: %w", err)
	}
	deafened := !info.Deafened
	if _, err := c.db.UpdateSessionFlags(info.Muted, deafened); err != nil {
		return false, fmt.Errorf("failed to update session flags: %w", err)
	}

	if err := c.relay.SetDeafen(deafened); err != nil {
		log.Warn().Err(err).Msg("failed to publish deafen flag")
	}
	return deafened, nil
}

// Close leaves the current channel if one is active.
func (c *Controller) Close() error {
	return c.Leave()
}

func closeCapture(capture media.Capturer) {
	if err := capture.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close capture device")
	}
}
