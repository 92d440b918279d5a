package database

import (
	"time"

	"voicemesh/participant"
)

// SessionInfo is the local participant's active voice session. At most one
// exists at a time.
type SessionInfo struct {
	ID        string
	ChannelID string
	LocalNum  uint64
	Handle    string
	Muted     bool
	Deafened  bool
	CreatedAt time.Time
}

// Local rebuilds the local participant identity.
func (s *SessionInfo) Local() participant.ID {
	return participant.ID{Num: s.LocalNum, Handle: s.Handle}
}

// DeepCopy creates a deep copy of the given SessionInfo.
func (s *SessionInfo) DeepCopy() *SessionInfo {
	return &SessionInfo{
		ID:        s.ID,
		ChannelID: s.ChannelID,
		LocalNum:  s.LocalNum,
		Handle:    s.Handle,
		Muted:     s.Muted,
		Deafened:  s.Deafened,
		CreatedAt: s.CreatedAt,
	}
}
