package media

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// WebRTC is the pion-backed Engine.
type WebRTC struct {
	api    *webrtc.API
	config webrtc.Configuration
}

// NewWebRTC builds the engine: default codecs, default interceptors and the
// configured UDP port range.
func NewWebRTC(config Config) (*WebRTC, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	s := webrtc.SettingEngine{}
	if err := config.SetPortRange(&s); err != nil {
		return nil, err
	}

	return &WebRTC{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(m),
			webrtc.WithInterceptorRegistry(i),
			webrtc.WithSettingEngine(s),
		),
		config: webrtc.Configuration{ICEServers: config.iceServers()},
	}, nil
}

// NewConnection creates a new peer connection.
func (w *WebRTC) NewConnection() (Connection, error) {
	conn, err := w.api.NewPeerConnection(w.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	return &webrtcConnection{conn: conn}, nil
}

// webrtcConnection adapts *webrtc.PeerConnection to the Connection interface.
type webrtcConnection struct {
	conn *webrtc.PeerConnection
}

// AddTrack attaches the shared local track and drains incoming RTCP so
// interceptors keep running.
func (c *webrtcConnection) AddTrack(t Track) error {
	local, ok := t.(*LocalTrack)
	if !ok {
		return fmt.Errorf("unsupported track type %T", t)
	}
	sender, err := c.conn.AddTrack(local.track)
	if err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}
	go func() {
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, rtcpErr := sender.Read(rtcpBuf); rtcpErr != nil {
				return
			}
		}
	}()
	return nil
}

// CreateOffer produces and installs the local offer.
func (c *webrtcConnection) CreateOffer() (string, error) {
	offer, err := c.conn.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	if err := c.conn.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	return offer.SDP, nil
}

// CreateAnswer accepts the remote offer, produces and installs the answer.
func (c *webrtcConnection) CreateAnswer(remoteSDP string) (string, error) {
	if err := c.conn.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer, SDP: remoteSDP,
	}); err != nil {
		return "", fmt.Errorf("failed to set remote offer: %w", err)
	}
	answer, err := c.conn.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	if err := c.conn.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	return answer.SDP, nil
}

// SetRemoteAnswer accepts the remote answer.
func (c *webrtcConnection) SetRemoteAnswer(sdp string) error {
	if err := c.conn.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer, SDP: sdp,
	}); err != nil {
		return fmt.Errorf("failed to set remote answer: %w", err)
	}
	return nil
}

// AddCandidate applies a remote candidate.
func (c *webrtcConnection) AddCandidate(cand Candidate) error {
	if err := c.conn.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	}); err != nil {
		return fmt.Errorf("failed to add candidate: %w", err)
	}
	return nil
}

// OnCandidate registers the local candidate callback. pion signals the end of
// gathering with a nil candidate, which is not forwarded.
func (c *webrtcConnection) OnCandidate(fn func(Candidate)) {
	c.conn.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		init := cand.ToJSON()
		fn(Candidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})
}

// OnStateChange maps pion connection states onto the engine lifecycle.
func (c *webrtcConnection) OnStateChange(fn func(ConnState)) {
	c.conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnecting:
			fn(StateConnecting)
		case webrtc.PeerConnectionStateConnected:
			fn(StateConnected)
		case webrtc.PeerConnectionStateDisconnected:
			fn(StateDisconnected)
		case webrtc.PeerConnectionStateFailed:
			fn(StateFailed)
		case webrtc.PeerConnectionStateClosed:
			fn(StateClosed)
		default:
			log.Debug().Stringer("state", state).Msg("unmapped connection state")
		}
	})
}

// Close releases the underlying transport.
func (c *webrtcConnection) Close() error {
	return c.conn.Close()
}
