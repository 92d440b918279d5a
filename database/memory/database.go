// Package memory provides an in-memory database implementation.
package memory

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"

	"voicemesh/database"
	"voicemesh/participant"
)

// DB is a memory-backed database.
type DB struct {
	db *memdb.MemDB
}

// New creates a new memory-backed database.
func New() *DB {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(err)
	}
	return &DB{db: db}
}

// CreateSessionInfo creates the active session row. Only one session may be
// active at a time.
func (d *DB) CreateSessionInfo(id, channelID string, local participant.ID) (*database.SessionInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	it, err := txn.Get(tblSessions, idxSessionID)
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	if it.Next() != nil {
		return nil, fmt.Errorf("%s: %w", channelID, database.ErrSessionAlreadyExists)
	}
	info := &database.SessionInfo{
		ID:        id,
		ChannelID: channelID,
		LocalNum:  local.Num,
		Handle:    local.Handle,
		CreatedAt: time.Now(),
	}
	if err := txn.Insert(tblSessions, info); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindSessionInfo returns the active session row.
func (d *DB) FindSessionInfo() (*database.SessionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	info, err := firstSession(txn)
	if err != nil {
		return nil, err
	}
	return info.DeepCopy(), nil
}

// UpdateSessionFlags replaces the local mute/deafen flags.
func (d *DB) UpdateSessionFlags(muted, deafened bool) (*database.SessionInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	current, err := firstSession(txn)
	if err != nil {
		return nil, err
	}
	info := current.DeepCopy()
	info.Muted = muted
	info.Deafened = deafened
	if err := txn.Insert(tblSessions, info); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// DeleteSessionInfo removes the active session row. Deleting with no active
// session is a no-op.
func (d *DB) DeleteSessionInfo() error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(tblSessions, idxSessionID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	txn.Commit()
	return nil
}

// CreateMemberInfo creates a new member if it doesn't exist.
func (d *DB) CreateMemberInfo(channelID string, id participant.ID, muted, deafened bool) (*database.MemberInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	existing, err := txn.First(tblMembers, idxMemberNum, channelID, id.Num)
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s: %w", id, database.ErrMemberAlreadyExists)
	}
	info := database.NewMemberInfo(channelID, id, muted, deafened)
	if err := txn.Insert(tblMembers, info); err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindMemberInfoByNum finds a member by its numeric identity.
func (d *DB) FindMemberInfoByNum(channelID string, num uint64) (*database.MemberInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tblMembers, idxMemberNum, channelID, num)
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%d: %w", num, database.ErrMemberNotFound)
	}
	return raw.(*database.MemberInfo).DeepCopy(), nil
}

// FindAllMemberInfo returns every member of the channel.
func (d *DB) FindAllMemberInfo(channelID string) ([]*database.MemberInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tblMembers, idxMemberChannelID, channelID)
	if err != nil {
		return nil, fmt.Errorf("scan members: %w", err)
	}
	var results []*database.MemberInfo
	for obj := it.Next(); obj != nil; obj = it.Next() {
		results = append(results, obj.(*database.MemberInfo).DeepCopy())
	}
	return results, nil
}

// UpdateMemberFlags replaces the mute/deafen flags of one member.
func (d *DB) UpdateMemberFlags(channelID string, num uint64, muted, deafened bool) (*database.MemberInfo, error) {
	return d.updateMember(channelID, num, func(info *database.MemberInfo) {
		info.UpdateFlags(muted, deafened)
	})
}

// UpdateMemberSpeaking replaces the speaking indicator of one member.
func (d *DB) UpdateMemberSpeaking(channelID string, num uint64, speaking bool) (*database.MemberInfo, error) {
	return d.updateMember(channelID, num, func(info *database.MemberInfo) {
		info.Speaking = speaking
	})
}

// DeleteMemberInfoByNum deletes a member.
func (d *DB) DeleteMemberInfoByNum(channelID string, num uint64) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblMembers, idxMemberNum, channelID, num)
	if err != nil {
		return fmt.Errorf("find member: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%d: %w", num, database.ErrMemberNotFound)
	}
	if err := txn.Delete(tblMembers, raw); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	txn.Commit()
	return nil
}

// ReplaceAllMemberInfo atomically replaces the channel membership with the
// given snapshot. Last write wins; this is the self-healing path for missed
// events.
func (d *DB) ReplaceAllMemberInfo(channelID string, members []*database.MemberInfo) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(tblMembers, idxMemberChannelID, channelID); err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	now := time.Now()
	for _, m := range members {
		info := m.DeepCopy()
		info.ChannelID = channelID
		if info.JoinedAt.IsZero() {
			info.JoinedAt = now
		}
		info.LastUpdated = now
		if err := txn.Insert(tblMembers, info); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
	}
	txn.Commit()
	return nil
}

// DeleteAllMemberInfo removes every member of the channel.
func (d *DB) DeleteAllMemberInfo(channelID string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(tblMembers, idxMemberChannelID, channelID); err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	txn.Commit()
	return nil
}

func (d *DB) updateMember(channelID string, num uint64, apply func(*database.MemberInfo)) (*database.MemberInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblMembers, idxMemberNum, channelID, num)
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%d: %w", num, database.ErrMemberNotFound)
	}
	info := raw.(*database.MemberInfo).DeepCopy()
	apply(info)
	info.UpdateLastUpdated()
	if err := txn.Insert(tblMembers, info); err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

func firstSession(txn *memdb.Txn) (*database.SessionInfo, error) {
	it, err := txn.Get(tblSessions, idxSessionID)
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	raw := it.Next()
	if raw == nil {
		return nil, database.ErrSessionNotFound
	}
	return raw.(*database.SessionInfo), nil
}
