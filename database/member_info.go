package database

import (
	"time"

	"voicemesh/participant"
)

// MemberInfo is the advisory state of one remote participant. The flags are
// UI/policy signals; they never gate signaling.
type MemberInfo struct {
	ChannelID   string
	Num         uint64
	Handle      string
	Muted       bool
	Deafened    bool
	Speaking    bool
	JoinedAt    time.Time
	LastUpdated time.Time
}

// NewMemberInfo creates a MemberInfo with fresh timestamps.
func NewMemberInfo(channelID string, id participant.ID, muted, deafened bool) *MemberInfo {
	now := time.Now()
	return &MemberInfo{
		ChannelID:   channelID,
		Num:         id.Num,
		Handle:      id.Handle,
		Muted:       muted,
		Deafened:    deafened,
		JoinedAt:    now,
		LastUpdated: now,
	}
}

// ID rebuilds the participant identity.
func (m *MemberInfo) ID() participant.ID {
	return participant.ID{Num: m.Num, Handle: m.Handle}
}

// UpdateFlags replaces the mute/deafen flags.
func (m *MemberInfo) UpdateFlags(muted, deafened bool) {
	m.Muted = muted
	m.Deafened = deafened
}

// UpdateLastUpdated refreshes the modification timestamp.
func (m *MemberInfo) UpdateLastUpdated() {
	m.LastUpdated = time.Now()
}

// DeepCopy creates a deep copy of the given MemberInfo.
func (m *MemberInfo) DeepCopy() *MemberInfo {
	return &MemberInfo{
		ChannelID:   m.ChannelID,
		Num:         m.Num,
		Handle:      m.Handle,
		Muted:       m.Muted,
		Deafened:    m.Deafened,
		Speaking:    m.Speaking,
		JoinedAt:    m.JoinedAt,
		LastUpdated: m.LastUpdated,
	}
}
