// Package ws implements the relay transport over a WebSocket connection.
package ws

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"voicemesh/broker"
	"voicemesh/media"
	"voicemesh/metric"
	"voicemesh/participant"
	"voicemesh/types/message"
	"voicemesh/types/relay/request"
	"voicemesh/types/relay/response"
)

// Client is the WebSocket relay transport. Inbound traffic is decoded and
// published to the broker; outbound traffic goes through the Send methods.
// It redials on read failure and announces transport state through the
// Transport topic so the coordinator can resynchronize.
type Client struct {
	config  Config
	local   participant.ID
	broker  *broker.Broker
	metrics *metric.Metrics

	mu   sync.Mutex // guards conn for writes and redial swaps
	conn *websocket.Conn

	stop chan struct{}
	done chan struct{}
}

// Dial connects to the relay and starts the read pump. The initial connect
// does not announce itself on the Transport topic; only recoveries do.
func Dial(config Config, local participant.ID, brk *broker.Broker, metrics *metric.Metrics) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}
	c := &Client{
		config:  config,
		local:   local,
		broker:  brk,
		metrics: metrics,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if err := c.dial(); err != nil {
		return nil, err
	}
	go c.readPump()
	return c, nil
}

func (c *Client) dial() error {
	u := url.URL{Scheme: "ws", Host: c.config.URL, Path: c.config.Path}
	dialer := websocket.Dialer{HandshakeTimeout: c.config.DialTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// JoinChannel announces the local participant. Each attempt carries a fresh
// nonce so the relay can discard replays after a reconnect.
func (c *Client) JoinChannel(channelID string) error {
	return c.send(request.JOIN, request.Join{
		ChannelID: channelID,
		ClientNum: c.local.Num,
		Handle:    c.local.Handle,
		Nonce:     uuid.NewString(),
	})
}

// LeaveChannel announces departure from the channel.
func (c *Client) LeaveChannel(channelID string) error {
	return c.send(request.LEAVE, request.Leave{ChannelID: channelID})
}

// SendOffer addresses a session offer to one participant.
func (c *Client) SendOffer(target participant.ID, sdp string) error {
	return c.send(request.OFFER, request.Offer{TargetNum: target.Num, SDP: sdp})
}

// SendAnswer addresses a session answer to one participant.
func (c *Client) SendAnswer(target participant.ID, sdp string) error {
	return c.send(request.ANSWER, request.Answer{TargetNum: target.Num, SDP: sdp})
}

// SendCandidate addresses one connectivity candidate to one participant.
func (c *Client) SendCandidate(target participant.ID, candidate media.Candidate) error {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate: %w", err)
	}
	return c.send(request.ICE, request.Ice{TargetNum: target.Num, Candidate: raw})
}

// SetMute publishes the local mute flag.
func (c *Client) SetMute(muted bool) error {
	return c.send(request.MUTE, request.Mute{Muted: muted})
}

// SetDeafen publishes the local deafen flag.
func (c *Client) SetDeafen(deafened bool) error {
	return c.send(request.DEAFEN, request.Deafen{Deafened: deafened})
}

// SpeakingChanged publishes the local speaking indicator.
func (c *Client) SpeakingChanged(speaking bool) error {
	return c.send(request.SPEAKING, request.Speaking{Speaking: speaking})
}

// Close tears down the transport and waits for the read pump to exit.
func (c *Client) Close() error {
	close(c.stop)
	c.mu.Lock()
	err := c.conn.Close()
	c.mu.Unlock()
	<-c.done
	return err
}

func (c *Client) send(messageType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", messageType, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(request.Common{Type: messageType, Payload: raw}); err != nil {
		return fmt.Errorf("failed to send %s: %w", messageType, err)
	}
	c.metrics.ObserveRelayMessage("outbound", messageType)
	return nil
}

// readPump reads until the transport fails, then redials until it recovers
// or the client is closed.
func (c *Client) readPump() {
	defer close(c.done)
	for {
		c.readLoop()
		select {
		case <-c.stop:
			return
		default:
		}
		if err := c.broker.Publish(broker.Transport, broker.DISCONNECTED, message.TransportDisconnected{}); err != nil {
			log.Error().Err(err).Msg("failed to publish transport state")
		}
		if !c.redial() {
			return
		}
		if err := c.broker.Publish(broker.Transport, broker.CONNECTED, message.TransportConnected{}); err != nil {
			log.Error().Err(err).Msg("failed to publish transport state")
		}
	}
}

func (c *Client) readLoop() {
	for {
		var envelope response.Common
		if err := c.conn.ReadJSON(&envelope); err != nil {
			select {
			case <-c.stop:
			default:
				log.Warn().Err(err).Msg("relay read failed")
			}
			return
		}
		c.metrics.ObserveRelayMessage("inbound", envelope.Type)
		if err := c.dispatch(envelope); err != nil {
			log.Warn().Err(err).Str("type", envelope.Type).Msg("failed to dispatch relay message")
		}
	}
}

func (c *Client) redial() bool {
	ticker := time.NewTicker(c.config.RedialInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return false
		case <-ticker.C:
			if err := c.dial(); err != nil {
				log.Warn().Err(err).Str("url", c.config.URL).Msg("relay redial failed")
				continue
			}
			log.Info().Str("url", c.config.URL).Msg("relay reconnected")
			return true
		}
	}
}

// dispatch converts one wire event into its broker message.
func (c *Client) dispatch(envelope response.Common) error {
	switch envelope.Type {
	case response.ROSTER:
		var evt response.Roster
		if err := json.Unmarshal(envelope.Payload, &evt); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", envelope.Type, err)
		}
		members := make([]message.Member, 0, len(evt.Members))
		for _, m := range evt.Members {
			members = append(members, toMember(m))
		}
		return c.broker.Publish(broker.Member, broker.ROSTER, message.Roster{
			ChannelID: evt.ChannelID,
			Members:   members,
		})
	case response.JOINED:
		var evt response.Joined
		if err := json.Unmarshal(envelope.Payload, &evt); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", envelope.Type, err)
		}
		return c.broker.Publish(broker.Member, broker.JOINED, message.MemberJoined{
			ChannelID: evt.ChannelID,
			Member:    toMember(evt.Member),
		})
	case response.LEFT:
		var evt response.Left
		if err := json.Unmarshal(envelope.Payload, &evt); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", envelope.Type, err)
		}
		return c.broker.Publish(broker.Member, broker.LEFT, message.MemberLeft{
			ChannelID: evt.ChannelID,
			ID:        participant.ID{Num: evt.Num},
		})
	case response.STATE:
		var evt response.State
		if err := json.Unmarshal(envelope.Payload, &evt); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", envelope.Type, err)
		}
		return c.broker.Publish(broker.Member, broker.STATE, message.MemberState{
			ChannelID: evt.ChannelID,
			ID:        participant.ID{Num: evt.Num},
			Muted:     evt.Muted,
			Deafened:  evt.Deafened,
		})
	case response.SPEAKING:
		var evt response.Speaking
		if err := json.Unmarshal(envelope.Payload, &evt); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", envelope.Type, err)
		}
		return c.broker.Publish(broker.Member, broker.SPEAKING, message.MemberSpeaking{
			ChannelID: evt.ChannelID,
			ID:        participant.ID{Num: evt.Num},
			Speaking:  evt.Speaking,
		})
	case response.OFFER:
		var evt response.Offer
		if err := json.Unmarshal(envelope.Payload, &evt); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", envelope.Type, err)
		}
		return c.broker.Publish(broker.Signal, broker.OFFER, message.Offer{
			From:   participant.ID{Num: evt.FromNum, Handle: evt.FromHandle},
			Target: toTarget(evt.TargetNum),
			SDP:    evt.SDP,
		})
	case response.ANSWER:
		var evt response.Answer
		if err := json.Unmarshal(envelope.Payload, &evt); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", envelope.Type, err)
		}
		return c.broker.Publish(broker.Signal, broker.ANSWER, message.Answer{
			From:   participant.ID{Num: evt.FromNum, Handle: evt.FromHandle},
			Target: toTarget(evt.TargetNum),
			SDP:    evt.SDP,
		})
	case response.ICE:
		var evt response.Ice
		if err := json.Unmarshal(envelope.Payload, &evt); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", envelope.Type, err)
		}
		var candidate media.Candidate
		if err := json.Unmarshal(evt.Candidate, &candidate); err != nil {
			return fmt.Errorf("failed to unmarshal candidate: %w", err)
		}
		return c.broker.Publish(broker.Signal, broker.ICE, message.Ice{
			From:      participant.ID{Num: evt.FromNum, Handle: evt.FromHandle},
			Target:    toTarget(evt.TargetNum),
			Candidate: candidate,
		})
	default:
		return fmt.Errorf("unknown message type: %s", envelope.Type)
	}
}

func toMember(m response.Member) message.Member {
	return message.Member{
		ID:       participant.ID{Num: m.Num, Handle: m.Handle},
		Muted:    m.Muted,
		Deafened: m.Deafened,
	}
}

func toTarget(num *uint64) *participant.ID {
	if num == nil {
		return nil
	}
	return &participant.ID{Num: *num}
}
