// Package response contains the wire types the relay delivers to this client.
package response

import "encoding/json"

// Constants for response types.
const (
	ROSTER   = "ROSTER"
	JOINED   = "JOINED"
	LEFT     = "LEFT"
	STATE    = "STATE"
	SPEAKING = "SPEAKING"
	OFFER    = "OFFER"
	ANSWER   = "ANSWER"
	ICE      = "ICE"
)

// Common is the envelope wrapping every event.
type Common struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Member is one participant entry as the relay reports it.
type Member struct {
	Num      uint64 `json:"id"`
	Handle   string `json:"handle"`
	Muted    bool   `json:"muted"`
	Deafened bool   `json:"deafened"`
}

// Roster is the full membership snapshot of a channel.
type Roster struct {
	ChannelID string   `json:"channel_id"`
	Members   []Member `json:"members"`
}

// Joined reports a participant entering the channel.
type Joined struct {
	ChannelID string `json:"channel_id"`
	Member    Member `json:"member"`
}

// Left reports a participant leaving the channel.
type Left struct {
	ChannelID string `json:"channel_id"`
	Num       uint64 `json:"id"`
}

// State reports a participant's mute/deafen flags changing.
type State struct {
	ChannelID string `json:"channel_id"`
	Num       uint64 `json:"id"`
	Muted     bool   `json:"muted"`
	Deafened  bool   `json:"deafened"`
}

// Speaking reports a participant's speaking indicator changing.
type Speaking struct {
	ChannelID string `json:"channel_id"`
	Num       uint64 `json:"id"`
	Speaking  bool   `json:"speaking"`
}

// Offer delivers a session offer. Target is absent when the relay broadcasts
// channel-wide; receivers must then check addressing themselves.
type Offer struct {
	FromNum    uint64  `json:"from"`
	FromHandle string  `json:"from_handle"`
	TargetNum  *uint64 `json:"target,omitempty"`
	SDP        string  `json:"sdp"`
}

// Answer delivers a session answer.
type Answer struct {
	FromNum    uint64  `json:"from"`
	FromHandle string  `json:"from_handle"`
	TargetNum  *uint64 `json:"target,omitempty"`
	SDP        string  `json:"sdp"`
}

// Ice delivers one connectivity candidate as an opaque payload.
type Ice struct {
	FromNum    uint64          `json:"from"`
	FromHandle string          `json:"from_handle"`
	TargetNum  *uint64         `json:"target,omitempty"`
	Candidate  json.RawMessage `json:"candidate"`
}
