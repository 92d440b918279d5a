package coordinator_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicemesh/broker"
	"voicemesh/coordinator"
	"voicemesh/database/memory"
	"voicemesh/media"
	"voicemesh/metric"
	"voicemesh/participant"
	"voicemesh/peer"
	"voicemesh/roster"
	"voicemesh/types/message"
)

const testChannel = "channel-1"

var (
	localID = participant.ID{Num: 7, Handle: "alba"}
	breeID  = participant.ID{Num: 5, Handle: "bree"}
	coryID  = participant.ID{Num: 9, Handle: "cory"}
)

type sentSignal struct {
	target participant.ID
	sdp    string
}

// fakeRelay records outbound signaling.
type fakeRelay struct {
	mu         sync.Mutex
	joins      []string
	offers     []sentSignal
	answers    []sentSignal
	candidates []participant.ID
}

func (r *fakeRelay) JoinChannel(channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joins = append(r.joins, channelID)
	return nil
}

func (r *fakeRelay) LeaveChannel(string) error { return nil }

func (r *fakeRelay) SendOffer(target participant.ID, sdp string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = append(r.offers, sentSignal{target: target, sdp: sdp})
	return nil
}

func (r *fakeRelay) SendAnswer(target participant.ID, sdp string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, sentSignal{target: target, sdp: sdp})
	return nil
}

func (r *fakeRelay) SendCandidate(target participant.ID, _ media.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = append(r.candidates, target)
	return nil
}

func (r *fakeRelay) SetMute(bool) error         { return nil }
func (r *fakeRelay) SetDeafen(bool) error       { return nil }
func (r *fakeRelay) SpeakingChanged(bool) error { return nil }
func (r *fakeRelay) Close() error               { return nil }

func (r *fakeRelay) sentOffers() []sentSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentSignal(nil), r.offers...)
}

func (r *fakeRelay) sentAnswers() []sentSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentSignal(nil), r.answers...)
}

func (r *fakeRelay) joinCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.joins)
}

// fakeConn records the signaling applied to one transport.
type fakeConn struct {
	mu            sync.Mutex
	tracks        int
	offersCreated int
	remoteOffer   string
	remoteAnswers []string
	candidates    []media.Candidate
	closed        int
	stateCB       func(media.ConnState)
}

func (f *fakeConn) AddTrack(media.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks++
	return nil
}

func (f *fakeConn) CreateOffer() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offersCreated++
	return "offer-sdp", nil
}

func (f *fakeConn) CreateAnswer(remoteSDP string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remoteOffer = remoteSDP
	return "answer-sdp", nil
}

func (f *fakeConn) SetRemoteAnswer(sdp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remoteAnswers = append(f.remoteAnswers, sdp)
	return nil
}

func (f *fakeConn) AddCandidate(candidate media.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, candidate)
	return nil
}

func (f *fakeConn) OnCandidate(func(media.Candidate)) {}

func (f *fakeConn) OnStateChange(fn func(media.ConnState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCB = fn
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeConn) fire(state media.ConnState) {
	f.mu.Lock()
	fn := f.stateCB
	f.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

func (f *fakeConn) appliedCandidates() []media.Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]media.Candidate(nil), f.candidates...)
}

func (f *fakeConn) answerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.remoteAnswers)
}

func (f *fakeConn) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeEngine hands out fakeConns and remembers them in creation order.
type fakeEngine struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (e *fakeEngine) NewConnection() (media.Connection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	conn := &fakeConn{}
	e.conns = append(e.conns, conn)
	return conn, nil
}

func (e *fakeEngine) conn(i int) *fakeConn {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i >= len(e.conns) {
		return nil
	}
	return e.conns[i]
}

func (e *fakeEngine) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

type fakeTrack struct{}

func (fakeTrack) ID() string { return "mic" }

type fixture struct {
	broker *broker.Broker
	relay  *fakeRelay
	engine *fakeEngine
	peers  *peer.Manager
}

func start(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		broker: broker.New(),
		relay:  &fakeRelay{},
		engine: &fakeEngine{},
		peers:  peer.NewManager(),
	}
	tracker := roster.NewTracker(memory.New())
	metrics := metric.New(metric.Config{Port: metric.DefaultMetricsPort, Path: metric.DefaultMetricsPath})
	c := coordinator.New(f.broker, tracker, f.peers, f.relay, f.engine, metrics, localID, testChannel, fakeTrack{})
	go c.Start()
	t.Cleanup(c.Stop)
	<-c.Ready()
	return f
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func (f *fixture) publish(t *testing.T, topic broker.Topic, detail broker.Detail, msg any) {
	t.Helper()
	require.NoError(t, f.broker.Publish(topic, detail, msg))
}

func (f *fixture) peerState(num uint64) (peer.State, bool) {
	p, ok := f.peers.Get(num)
	if !ok {
		return 0, false
	}
	return p.State(), true
}

func rosterOf(members ...participant.ID) message.Roster {
	msg := message.Roster{ChannelID: testChannel}
	for _, id := range members {
		msg.Members = append(msg.Members, message.Member{ID: id})
	}
	return msg
}

func TestCoordinator_Roster(t *testing.T) {
	t.Run("given members on both sides of the tie-break when roster arrives then only lower identities get offers", func(t *testing.T) {
		f := start(t)

		f.publish(t, broker.Member, broker.ROSTER, rosterOf(breeID, coryID))

		waitFor(t, func() bool { return len(f.relay.sentOffers()) == 1 })
		offers := f.relay.sentOffers()
		assert.Equal(t, breeID, offers[0].target)
		assert.Equal(t, "offer-sdp", offers[0].sdp)

		waitFor(t, func() bool { return f.peers.Count() == 2 })
		state, ok := f.peerState(breeID.Num)
		require.True(t, ok)
		assert.Equal(t, peer.AwaitingAnswer, state)
		state, ok = f.peerState(coryID.Num)
		require.True(t, ok)
		assert.Equal(t, peer.AwaitingOffer, state)
	})

	t.Run("given local entry in snapshot when roster arrives then no peer is created for it", func(t *testing.T) {
		f := start(t)

		f.publish(t, broker.Member, broker.ROSTER, rosterOf(localID, breeID))

		waitFor(t, func() bool { return f.peers.Count() == 1 })
		_, ok := f.peers.Get(localID.Num)
		assert.False(t, ok)
	})

	t.Run("given established peer when snapshot drops it then peer is torn down", func(t *testing.T) {
		f := start(t)
		f.publish(t, broker.Member, broker.ROSTER, rosterOf(breeID, coryID))
		waitFor(t, func() bool { return f.peers.Count() == 2 })

		f.publish(t, broker.Member, broker.ROSTER, rosterOf(coryID))

		waitFor(t, func() bool { return f.peers.Count() == 1 })
		_, ok := f.peers.Get(breeID.Num)
		assert.False(t, ok)
		assert.Equal(t, 1, f.engine.conn(0).closeCount())
	})
}

func TestCoordinator_Offer(t *testing.T) {
	t.Run("given awaiting peer when offer arrives then answer is sent and candidates drain in order", func(t *testing.T) {
		f := start(t)
		f.publish(t, broker.Member, broker.ROSTER, rosterOf(coryID))
		waitFor(t, func() bool { return f.peers.Count() == 1 })

		first := media.Candidate{Candidate: "candidate-1"}
		second := media.Candidate{Candidate: "candidate-2"}
		f.publish(t, broker.Signal, broker.ICE, message.Ice{From: coryID, Candidate: first})
		f.publish(t, broker.Signal, broker.ICE, message.Ice{From: coryID, Candidate: second})
		f.publish(t, broker.Signal, broker.OFFER, message.Offer{From: coryID, SDP: "remote-offer"})

		waitFor(t, func() bool { return len(f.relay.sentAnswers()) == 1 })
		assert.Equal(t, coryID, f.relay.sentAnswers()[0].target)

		conn := f.engine.conn(0)
		assert.Equal(t, "remote-offer", conn.remoteOffer)
		assert.Equal(t, []media.Candidate{first, second}, conn.appliedCandidates())

		state, ok := f.peerState(coryID.Num)
		require.True(t, ok)
		assert.Equal(t, peer.NegotiatingRemote, state)

		// Later candidates skip the buffer.
		third := media.Candidate{Candidate: "candidate-3"}
		f.publish(t, broker.Signal, broker.ICE, message.Ice{From: coryID, Candidate: third})
		waitFor(t, func() bool { return len(conn.appliedCandidates()) == 3 })
	})

	t.Run("given unknown sender when offer arrives then one peer is created and answered", func(t *testing.T) {
		f := start(t)
		stranger := participant.ID{Num: 12, Handle: "drew"}

		f.publish(t, broker.Signal, broker.OFFER, message.Offer{From: stranger, SDP: "remote-offer"})

		waitFor(t, func() bool { return len(f.relay.sentAnswers()) == 1 })
		assert.Equal(t, 1, f.engine.count())
		assert.Equal(t, 1, f.peers.Count())
		assert.Empty(t, f.relay.sentOffers())
	})

	t.Run("given pending local offer when offer arrives then it is dropped", func(t *testing.T) {
		f := start(t)
		f.publish(t, broker.Member, broker.ROSTER, rosterOf(breeID))
		waitFor(t, func() bool { return len(f.relay.sentOffers()) == 1 })

		f.publish(t, broker.Signal, broker.OFFER, message.Offer{From: breeID, SDP: "remote-offer"})

		time.Sleep(50 * time.Millisecond)
		state, ok := f.peerState(breeID.Num)
		require.True(t, ok)
		assert.Equal(t, peer.AwaitingAnswer, state)
		assert.Empty(t, f.relay.sentAnswers())
	})

	t.Run("given offer addressed elsewhere when it arrives then it is ignored", func(t *testing.T) {
		f := start(t)
		other := participant.ID{Num: 3}

		f.publish(t, broker.Signal, broker.OFFER, message.Offer{From: coryID, Target: &other, SDP: "remote-offer"})

		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, f.peers.Count())
		assert.Empty(t, f.relay.sentAnswers())
	})
}

func TestCoordinator_Answer(t *testing.T) {
	t.Run("given pending offer when answer arrives then remote description applies once", func(t *testing.T) {
		f := start(t)
		f.publish(t, broker.Member, broker.ROSTER, rosterOf(breeID))
		waitFor(t, func() bool { return len(f.relay.sentOffers()) == 1 })

		f.publish(t, broker.Signal, broker.ANSWER, message.Answer{From: breeID, SDP: "remote-answer"})

		waitFor(t, func() bool {
			state, ok := f.peerState(breeID.Num)
			return ok && state == peer.NegotiatingRemote
		})
		conn := f.engine.conn(0)
		assert.Equal(t, 1, conn.answerCount())

		// A replayed answer must not reapply.
		f.publish(t, broker.Signal, broker.ANSWER, message.Answer{From: breeID, SDP: "stale-answer"})
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, conn.answerCount())
	})

	t.Run("given buffered candidates when answer arrives then they apply in order", func(t *testing.T) {
		f := start(t)
		f.publish(t, broker.Member, broker.ROSTER, rosterOf(breeID))
		waitFor(t, func() bool { return len(f.relay.sentOffers()) == 1 })

		first := media.Candidate{Candidate: "candidate-1"}
		second := media.Candidate{Candidate: "candidate-2"}
		f.publish(t, broker.Signal, broker.ICE, message.Ice{From: breeID, Candidate: first})
		f.publish(t, broker.Signal, broker.ICE, message.Ice{From: breeID, Candidate: second})

		// Nothing may reach the transport while the answer is outstanding.
		time.Sleep(50 * time.Millisecond)
		conn := f.engine.conn(0)
		assert.Empty(t, conn.appliedCandidates())

		f.publish(t, broker.Signal, broker.ANSWER, message.Answer{From: breeID, SDP: "remote-answer"})

		waitFor(t, func() bool { return len(conn.appliedCandidates()) == 2 })
		assert.Equal(t, []media.Candidate{first, second}, conn.appliedCandidates())
		state, ok := f.peerState(breeID.Num)
		require.True(t, ok)
		assert.Equal(t, peer.NegotiatingRemote, state)
	})

	t.Run("given unknown sender when answer arrives then it is dropped", func(t *testing.T) {
		f := start(t)

		f.publish(t, broker.Signal, broker.ANSWER, message.Answer{From: breeID, SDP: "remote-answer"})

		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, f.peers.Count())
	})
}

func TestCoordinator_MemberLeft(t *testing.T) {
	t.Run("given established peer when member leaves then transport closes and late signals drop", func(t *testing.T) {
		f := start(t)
		f.publish(t, broker.Member, broker.ROSTER, rosterOf(breeID))
		waitFor(t, func() bool { return len(f.relay.sentOffers()) == 1 })

		f.publish(t, broker.Member, broker.LEFT, message.MemberLeft{ChannelID: testChannel, ID: breeID})

		waitFor(t, func() bool { return f.peers.Count() == 0 })
		conn := f.engine.conn(0)
		assert.Equal(t, 1, conn.closeCount())

		f.publish(t, broker.Signal, broker.ANSWER, message.Answer{From: breeID, SDP: "late-answer"})
		f.publish(t, broker.Signal, broker.ICE, message.Ice{From: breeID, Candidate: media.Candidate{Candidate: "late"}})
		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, conn.answerCount())
		assert.Empty(t, conn.appliedCandidates())
	})
}

func TestCoordinator_PeerLifecycle(t *testing.T) {
	t.Run("given negotiated peer when transport connects then peer reaches connected", func(t *testing.T) {
		f := start(t)
		f.publish(t, broker.Member, broker.ROSTER, rosterOf(breeID))
		waitFor(t, func() bool { return len(f.relay.sentOffers()) == 1 })

		f.engine.conn(0).fire(media.StateConnected)

		waitFor(t, func() bool {
			state, ok := f.peerState(breeID.Num)
			return ok && state == peer.Connected
		})
	})

	t.Run("given connected peer when transport fails then peer is torn down", func(t *testing.T) {
		f := start(t)
		f.publish(t, broker.Member, broker.ROSTER, rosterOf(breeID))
		waitFor(t, func() bool { return len(f.relay.sentOffers()) == 1 })
		conn := f.engine.conn(0)
		conn.fire(media.StateConnected)
		waitFor(t, func() bool {
			state, ok := f.peerState(breeID.Num)
			return ok && state == peer.Connected
		})

		conn.fire(media.StateFailed)

		waitFor(t, func() bool { return f.peers.Count() == 0 })
		assert.Equal(t, 1, conn.closeCount())
	})

	t.Run("given connected peer when transport blips then nothing is torn down", func(t *testing.T) {
		f := start(t)
		f.publish(t, broker.Member, broker.ROSTER, rosterOf(breeID))
		waitFor(t, func() bool { return len(f.relay.sentOffers()) == 1 })
		conn := f.engine.conn(0)
		conn.fire(media.StateConnected)

		conn.fire(media.StateDisconnected)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, f.peers.Count())
		assert.Zero(t, conn.closeCount())
	})
}

func TestCoordinator_Transport(t *testing.T) {
	t.Run("given relay reconnect when announced then channel is rejoined", func(t *testing.T) {
		f := start(t)

		f.publish(t, broker.Transport, broker.CONNECTED, message.TransportConnected{})

		waitFor(t, func() bool { return f.relay.joinCount() == 1 })
	})
}
