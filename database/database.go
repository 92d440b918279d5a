// Package database provides an interface for local session state storage.
package database

import (
	"errors"

	"voicemesh/participant"
)

var (
	// ErrMemberAlreadyExists is returned when the member already exists.
	ErrMemberAlreadyExists = errors.New("member already exists")

	// ErrMemberNotFound is returned when the member is not found.
	ErrMemberNotFound = errors.New("member not found")

	// ErrSessionAlreadyExists is returned when a session is already active.
	ErrSessionAlreadyExists = errors.New("session already exists")

	// ErrSessionNotFound is returned when no session is active.
	ErrSessionNotFound = errors.New("session not found")
)

// Database is an interface for local session state operations.
//
//go:generate mockgen -destination=mock_database.go -package=database . Database
type Database interface {
	CreateSessionInfo(id, channelID string, local participant.ID) (*SessionInfo, error)
	FindSessionInfo() (*SessionInfo, error)
	UpdateSessionFlags(muted, deafened bool) (*SessionInfo, error)
	DeleteSessionInfo() error

	CreateMemberInfo(channelID string, id participant.ID, muted, deafened bool) (*MemberInfo, error)
	FindMemberInfoByNum(channelID string, num uint64) (*MemberInfo, error)
	FindAllMemberInfo(channelID string) ([]*MemberInfo, error)
	UpdateMemberFlags(channelID string, num uint64, muted, deafened bool) (*MemberInfo, error)
	UpdateMemberSpeaking(channelID string, num uint64, speaking bool) (*MemberInfo, error)
	DeleteMemberInfoByNum(channelID string, num uint64) error
	ReplaceAllMemberInfo(channelID string, members []*MemberInfo) error
	DeleteAllMemberInfo(channelID string) error
}
