// Package coordinator runs the signaling protocol for one channel session.
package coordinator

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"voicemesh/broker"
	"voicemesh/broker/subscription"
	"voicemesh/media"
	"voicemesh/metric"
	"voicemesh/participant"
	"voicemesh/peer"
	"voicemesh/relay"
	"voicemesh/roster"
	"voicemesh/types/message"
)

// Coordinator owns all signaling decisions for one joined channel: who offers
// to whom, when answers and candidates apply, and when peers are torn down.
// Every handler runs on the Start goroutine, so protocol state is never
// touched concurrently.
type Coordinator struct {
	broker  *broker.Broker
	tracker *roster.Tracker
	peers   *peer.Manager
	relay   relay.Relay
	engine  media.Engine
	metrics *metric.Metrics

	local     participant.ID
	channelID string
	track     media.Track

	ready chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

// New creates a new instance of Coordinator.
func New(b *broker.Broker, tracker *roster.Tracker, peers *peer.Manager, rly relay.Relay,
	engine media.Engine, metrics *metric.Metrics, local participant.ID, channelID string, track media.Track,
) *Coordinator {
	return &Coordinator{
		broker:    b,
		tracker:   tracker,
		peers:     peers,
		relay:     rly,
		engine:    engine,
		metrics:   metrics,
		local:     local,
		channelID: channelID,
		track:     track,
		ready:     make(chan struct{}),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the dispatch loop until Stop is called. Handlers are invoked
// synchronously in arrival order; a candidate published after its offer is
// always handled after it.
func (c *Coordinator) Start() {
	defer close(c.done)

	var cleanup []func()
	subscribe := func(topic broker.Topic, detail broker.Detail) *subscription.Subscription {
		sub := c.broker.Subscribe(topic, detail)
		cleanup = append(cleanup, func() {
			if err := c.broker.Unsubscribe(topic, detail, sub); err != nil {
				log.Debug().Err(err).Msg("failed to unsubscribe")
			}
		})
		return sub
	}

	rosterEvent := subscribe(broker.Member, broker.ROSTER)
	joinedEvent := subscribe(broker.Member, broker.JOINED)
	leftEvent := subscribe(broker.Member, broker.LEFT)
	stateEvent := subscribe(broker.Member, broker.STATE)
	speakingEvent := subscribe(broker.Member, broker.SPEAKING)
	offerEvent := subscribe(broker.Signal, broker.OFFER)
	answerEvent := subscribe(broker.Signal, broker.ANSWER)
	iceEvent := subscribe(broker.Signal, broker.ICE)
	peerConnectedEvent := subscribe(broker.Peer, broker.CONNECTED)
	peerFailedEvent := subscribe(broker.Peer, broker.FAILED)
	peerDisconnectedEvent := subscribe(broker.Peer, broker.DISCONNECTED)
	transportConnectedEvent := subscribe(broker.Transport, broker.CONNECTED)
	transportDisconnectedEvent := subscribe(broker.Transport, broker.DISCONNECTED)
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()
	close(c.ready)

	for {
		select {
		case <-c.stop:
			return
		case event := <-rosterEvent.Receive():
			c.handleRoster(event)
		case event := <-joinedEvent.Receive():
			c.handleJoined(event)
		case event := <-leftEvent.Receive():
			c.handleLeft(event)
		case event := <-stateEvent.Receive():
			c.handleState(event)
		case event := <-speakingEvent.Receive():
			c.handleSpeaking(event)
		case event := <-offerEvent.Receive():
			c.handleOffer(event)
		case event := <-answerEvent.Receive():
			c.handleAnswer(event)
		case event := <-iceEvent.Receive():
			c.handleCandidate(event)
		case event := <-peerConnectedEvent.Receive():
			c.handlePeerConnected(event)
		case event := <-peerFailedEvent.Receive():
			c.handlePeerFailed(event)
		case event := <-peerDisconnectedEvent.Receive():
			c.handlePeerDisconnected(event)
		case event := <-transportConnectedEvent.Receive():
			c.handleTransportConnected(event)
		case event := <-transportDisconnectedEvent.Receive():
			c.handleTransportDisconnected(event)
		}
	}
}

// Ready is closed once the dispatch loop is subscribed. Joining the channel
// before this point could lose the roster snapshot.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// Stop ends the dispatch loop and waits for it to exit.
func (c *Coordinator) Stop() {
	close(c.stop)
	<-c.done
}

// handleRoster handles a full membership snapshot. The snapshot replaces the
// stored roster; peers for departed members are torn down and negotiation
// starts for new ones.
func (c *Coordinator) handleRoster(event any) {
	msg, ok := event.(message.Roster)
	if !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing roster message")
		return
	}
	if msg.ChannelID != c.channelID {
		return
	}

	// 01. Drop the local entry; some relays echo it back in snapshots.
	members := make([]message.Member, 0, len(msg.Members))
	for _, m := range msg.Members {
		if m.ID.Num == c.local.Num {
			continue
		}
		members = append(members, m)
	}

	// 02. Diff against the stored roster.
	added, removed, err := c.tracker.ApplySnapshot(c.channelID, members)
	if err != nil {
		log.Error().Err(err).Msg("error occurs in applying roster snapshot")
		return
	}

	// 03. Tear down peers for members the snapshot no longer lists.
	for _, id := range removed {
		c.removePeer(id.Num)
	}

	// 04. Negotiate with the new members.
	for _, m := range added {
		if err := c.negotiate(m.ID); err != nil {
			log.Error().Err(err).Stringer("peer", m.ID).Msg("error occurs in negotiating")
		}
	}
}

// handleJoined handles a single member joining the channel.
func (c *Coordinator) handleJoined(event any) {
	msg, ok := event.(message.MemberJoined)
	if !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing joined message")
		return
	}
	if msg.ChannelID != c.channelID || msg.Member.ID.Num == c.local.Num {
		return
	}

	created, err := c.tracker.Add(c.channelID, msg.Member)
	if err != nil {
		log.Error().Err(err).Stringer("peer", msg.Member.ID).Msg("error occurs in adding member")
		return
	}
	if !created {
		return
	}
	if err := c.negotiate(msg.Member.ID); err != nil {
		log.Error().Err(err).Stringer("peer", msg.Member.ID).Msg("error occurs in negotiating")
	}
}

// handleLeft handles a member leaving. The peer is closed immediately; any
// signaling from it that is still in flight will find no peer and be dropped.
func (c *Coordinator) handleLeft(event any) {
	msg, ok := event.(message.MemberLeft)
	if !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing left message")
		return
	}
	if msg.ChannelID != c.channelID {
		return
	}

	if err := c.tracker.Remove(c.channelID, msg.ID.Num); err != nil {
		log.Error().Err(err).Stringer("peer", msg.ID).Msg("error occurs in removing member")
	}
	c.removePeer(msg.ID.Num)
}

// handleState handles a member's advisory mute/deafen flags changing. The
// flags never gate signaling.
func (c *Coordinator) handleState(event any) {
	msg, ok := event.(message.MemberState)
	if !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing state message")
		return
	}
	if msg.ChannelID != c.channelID || msg.ID.Num == c.local.Num {
		return
	}

	if err := c.tracker.UpdateFlags(c.channelID, msg.ID.Num, msg.Muted, msg.Deafened); err != nil {
		log.Warn().Err(err).Stringer("peer", msg.ID).Msg("error occurs in updating member flags")
	}
}

// handleSpeaking handles a member's speaking indicator changing.
func (c *Coordinator) handleSpeaking(event any) {
	msg, ok := event.(message.MemberSpeaking)
	if !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing speaking message")
		return
	}
	if msg.ChannelID != c.channelID || msg.ID.Num == c.local.Num {
		return
	}

	if err := c.tracker.UpdateSpeaking(c.channelID, msg.ID.Num, msg.Speaking); err != nil {
		log.Warn().Err(err).Stringer("peer", msg.ID).Msg("error occurs in updating member speaking")
	}
}

// handleOffer handles an incoming session offer. Only a peer that outranks us
// may offer; our own pending offer is never abandoned for a late one.
func (c *Coordinator) handleOffer(event any) {
	msg, ok := event.(message.Offer)
	if !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing offer message")
		return
	}
	if !c.addressedToLocal(msg.Target) || msg.From.Num == c.local.Num {
		return
	}

	// 01. An offer may arrive before the membership event for its sender.
	p, ok := c.peers.Get(msg.From.Num)
	if !ok {
		if _, err := c.tracker.Add(c.channelID, message.Member{ID: msg.From}); err != nil {
			log.Error().Err(err).Stringer("peer", msg.From).Msg("error occurs in adding member")
			return
		}
		var err error
		p, err = c.createPeer(msg.From)
		if err != nil {
			log.Error().Err(err).Stringer("peer", msg.From).Msg("error occurs in creating peer")
			return
		}
	}

	// 02. Accept only while we are waiting for this side to move first.
	if state := p.State(); state != peer.New && state != peer.AwaitingOffer {
		log.Warn().Stringer("peer", msg.From).Stringer("state", state).Msg("dropping offer in unexpected state")
		return
	}

	// 03. Answer and drain candidates buffered before the remote description.
	answer, err := p.Conn().CreateAnswer(msg.SDP)
	if err != nil {
		log.Error().Err(err).Stringer("peer", msg.From).Msg("error occurs in creating answer")
		c.removePeer(msg.From.Num)
		return
	}
	c.drainCandidates(p)
	p.SetState(peer.NegotiatingRemote)

	if err := c.relay.SendAnswer(msg.From, answer); err != nil {
		log.Error().Err(err).Stringer("peer", msg.From).Msg("error occurs in sending answer")
	}
}

// handleAnswer handles an incoming session answer to our pending offer.
func (c *Coordinator) handleAnswer(event any) {
	msg, ok := event.(message.Answer)
	if !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing answer message")
		return
	}
	if !c.addressedToLocal(msg.Target) || msg.From.Num == c.local.Num {
		return
	}

	p, ok := c.peers.Get(msg.From.Num)
	if !ok {
		log.Debug().Stringer("peer", msg.From).Msg("dropping answer from unknown peer")
		return
	}
	// A stale answer can arrive after the peer was torn down and renegotiated.
	if state := p.State(); state != peer.AwaitingAnswer {
		log.Debug().Stringer("peer", msg.From).Stringer("state", state).Msg("dropping stale answer")
		return
	}

	if err := p.Conn().SetRemoteAnswer(msg.SDP); err != nil {
		log.Error().Err(err).Stringer("peer", msg.From).Msg("error occurs in applying answer")
		c.removePeer(msg.From.Num)
		return
	}
	c.drainCandidates(p)
	p.SetState(peer.NegotiatingRemote)
}

// handleCandidate handles one incoming connectivity candidate. Candidates
// arriving before the remote description are buffered in arrival order.
func (c *Coordinator) handleCandidate(event any) {
	msg, ok := event.(message.Ice)
	if !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing candidate message")
		return
	}
	if !c.addressedToLocal(msg.Target) || msg.From.Num == c.local.Num {
		return
	}

	p, ok := c.peers.Get(msg.From.Num)
	if !ok {
		log.Debug().Stringer("peer", msg.From).Msg("dropping candidate from unknown peer")
		return
	}
	if !p.RemoteSet() {
		p.BufferCandidate(msg.Candidate)
		return
	}
	if err := p.Conn().AddCandidate(msg.Candidate); err != nil {
		log.Warn().Err(err).Stringer("peer", msg.From).Msg("error occurs in adding candidate")
	}
}

// handlePeerConnected handles the media transport reaching connected.
func (c *Coordinator) handlePeerConnected(event any) {
	msg, ok := event.(message.PeerConnected)
	if !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing peer connected message")
		return
	}

	p, ok := c.peers.Get(msg.ID.Num)
	if !ok {
		return
	}
	if p.State() == peer.Connected {
		return
	}
	p.SetState(peer.Connected)
	c.metrics.IncrementPeerConnections()
	log.Info().Stringer("peer", msg.ID).Msg("peer connected")
}

// handlePeerFailed handles a fatal transport error. The peer is torn down;
// re-establishment happens only through fresh membership events.
func (c *Coordinator) handlePeerFailed(event any) {
	msg, ok := event.(message.PeerFailed)
	if !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing peer failed message")
		return
	}

	p, ok := c.peers.Get(msg.ID.Num)
	if !ok {
		return
	}
	log.Warn().Stringer("peer", msg.ID).Stringer("state", p.State()).Msg("peer connection failed")
	c.removePeer(msg.ID.Num)
}

// handlePeerDisconnected handles a possibly transient connectivity loss. The
// transport may recover on its own, so nothing is torn down here.
func (c *Coordinator) handlePeerDisconnected(event any) {
	msg, ok := event.(message.PeerDisconnected)
	if !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing peer disconnected message")
		return
	}
	log.Warn().Stringer("peer", msg.ID).Msg("peer connection interrupted")
}

// handleTransportConnected handles the relay link recovering. Rejoining makes
// the relay send a fresh snapshot, which resynchronizes membership.
func (c *Coordinator) handleTransportConnected(event any) {
	if _, ok := event.(message.TransportConnected); !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing transport connected message")
		return
	}
	log.Info().Str("channel", c.channelID).Msg("relay reconnected, rejoining channel")
	if err := c.relay.JoinChannel(c.channelID); err != nil {
		log.Error().Err(err).Msg("error occurs in rejoining channel")
	}
}

// handleTransportDisconnected handles the relay link dropping. Peers stay up;
// media keeps flowing peer to peer while signaling is down.
func (c *Coordinator) handleTransportDisconnected(event any) {
	if _, ok := event.(message.TransportDisconnected); !ok {
		log.Error().Any("event", event).Msg("error occurs in parsing transport disconnected message")
		return
	}
	log.Warn().Str("channel", c.channelID).Msg("relay disconnected")
}

// negotiate establishes a connection toward one member. The numerically
// greater identity creates the offer; the other side waits for it.
func (c *Coordinator) negotiate(id participant.ID) error {
	p, err := c.createPeer(id)
	if err != nil {
		if errors.Is(err, peer.ErrPeerAlreadyExists) {
			return nil
		}
		return err
	}

	if !c.local.Outranks(id) {
		p.SetState(peer.AwaitingOffer)
		return nil
	}

	sdp, err := p.Conn().CreateOffer()
	if err != nil {
		c.removePeer(id.Num)
		return fmt.Errorf("failed to create offer: %w", err)
	}
	p.SetState(peer.AwaitingAnswer)
	if err := c.relay.SendOffer(id, sdp); err != nil {
		c.removePeer(id.Num)
		return fmt.Errorf("failed to send offer: %w", err)
	}
	return nil
}

// createPeer builds the transport, registers the peer, and wires callbacks.
// Registration happens before any callback can fire, so lifecycle events
// always find their peer.
func (c *Coordinator) createPeer(id participant.ID) (*peer.Peer, error) {
	conn, err := c.engine.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}
	p, err := c.peers.Create(id, conn)
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Stringer("peer", id).Msg("failed to close connection")
		}
		return nil, err
	}

	conn.OnCandidate(func(candidate media.Candidate) {
		if err := c.relay.SendCandidate(id, candidate); err != nil {
			log.Warn().Err(err).Stringer("peer", id).Msg("error occurs in sending candidate")
		}
	})
	conn.OnStateChange(func(state media.ConnState) {
		var publishErr error
		switch state {
		case media.StateConnected:
			publishErr = c.broker.Publish(broker.Peer, broker.CONNECTED, message.PeerConnected{ID: id})
		case media.StateFailed:
			publishErr = c.broker.Publish(broker.Peer, broker.FAILED, message.PeerFailed{ID: id})
		case media.StateDisconnected:
			publishErr = c.broker.Publish(broker.Peer, broker.DISCONNECTED, message.PeerDisconnected{ID: id})
		}
		if publishErr != nil {
			log.Error().Err(publishErr).Stringer("peer", id).Msg("error occurs in publishing peer state")
		}
	})

	if err := conn.AddTrack(c.track); err != nil {
		c.removePeer(id.Num)
		return nil, fmt.Errorf("failed to add track: %w", err)
	}
	return p, nil
}

// drainCandidates applies candidates buffered before the remote description,
// in arrival order.
func (c *Coordinator) drainCandidates(p *peer.Peer) {
	for _, candidate := range p.MarkRemoteSet() {
		if err := p.Conn().AddCandidate(candidate); err != nil {
			log.Warn().Err(err).Stringer("peer", p.ID()).Msg("error occurs in adding buffered candidate")
		}
	}
}

// removePeer closes and forgets one peer, keeping the connected gauge honest.
func (c *Coordinator) removePeer(num uint64) {
	p, ok := c.peers.Get(num)
	if !ok {
		return
	}
	if p.State() == peer.Connected {
		c.metrics.DecrementPeerConnections()
	}
	c.peers.CloseAndRemove(num)
}

// addressedToLocal reports whether a signal is for us. A nil target means the
// relay broadcast the message channel-wide.
func (c *Coordinator) addressedToLocal(target *participant.ID) bool {
	return target == nil || target.Num == c.local.Num
}
