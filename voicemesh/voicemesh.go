// Package voicemesh wires a full-mesh voice channel client together: relay
// transport, media engine, local storage, and the session controller.
package voicemesh

import (
	"fmt"

	"voicemesh/broker"
	"voicemesh/database"
	"voicemesh/database/memory"
	"voicemesh/media"
	"voicemesh/metric"
	"voicemesh/participant"
	"voicemesh/relay/ws"
	"voicemesh/session"
)

// VoiceMesh contains the client's long-lived parts and configuration.
type VoiceMesh struct {
	config   Config
	broker   *broker.Broker
	database database.Database
	engine   *media.WebRTC
	relay    *ws.Client
	session  *session.Controller
	metric   *metric.Metrics
}

// New creates a new instance of VoiceMesh. The relay is dialed here; a client
// that cannot reach its relay has nothing to do.
func New(config Config) (*VoiceMesh, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	local := participant.ID{Num: config.ClientNum, Handle: config.Handle}

	brk := broker.New()
	db := memory.New()
	met := metric.New(config.Metrics)

	engine, err := media.NewWebRTC(config.Media)
	if err != nil {
		return nil, fmt.Errorf("failed to create media engine: %w", err)
	}

	rly, err := ws.Dial(config.Relay, local, brk, met)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}

	acquire := func() (media.Capturer, error) {
		return media.NewCapture("mic", local.String())
	}
	ctl := session.New(brk, db, rly, engine, met, config.Speaking, acquire, local)

	return &VoiceMesh{
		config:   config,
		broker:   brk,
		database: db,
		engine:   engine,
		relay:    rly,
		session:  ctl,
		metric:   met,
	}, nil
}

// Start runs the metrics server and system metrics collection.
func (v *VoiceMesh) Start() {
	v.metric.RegisterMetrics()
	v.metric.Start()
	v.metric.UpdateSystemMetrics()
}

// Session returns the session controller for join/leave and flag toggles.
func (v *VoiceMesh) Session() *session.Controller {
	return v.session
}

// Stop leaves any active session and shuts everything down.
func (v *VoiceMesh) Stop() error {
	if err := v.session.Close(); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if err := v.relay.Close(); err != nil {
		return fmt.Errorf("failed to close relay: %w", err)
	}
	return v.metric.Stop()
}
