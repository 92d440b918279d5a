// Package roster tracks advisory channel membership.
package roster

import (
	"errors"
	"fmt"

	"voicemesh/database"
	"voicemesh/participant"
	"voicemesh/types/message"
)

// Tracker maintains the local view of channel membership. Snapshots replace
// the stored roster entirely; incremental events adjust it one member at a
// time. All methods are called from the coordinator's dispatch goroutine.
type Tracker struct {
	db database.Database
}

// NewTracker creates a tracker backed by the given database.
func NewTracker(db database.Database) *Tracker {
	return &Tracker{db: db}
}

// ApplySnapshot replaces the stored roster for channelID with members and
// reports the difference: members present in the snapshot but not stored
// before, and stored members absent from the snapshot.
func (t *Tracker) ApplySnapshot(channelID string, members []message.Member) (added []message.Member, removed []participant.ID, err error) {
	stored, err := t.db.FindAllMemberInfo(channelID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find members: %w", err)
	}

	known := make(map[uint64]*database.MemberInfo, len(stored))
	for _, info := range stored {
		known[info.Num] = info
	}

	infos := make([]*database.MemberInfo, 0, len(members))
	seen := make(map[uint64]struct{}, len(members))
	for _, m := range members {
		if _, ok := seen[m.ID.Num]; ok {
			continue
		}
		seen[m.ID.Num] = struct{}{}
		infos = append(infos, database.NewMemberInfo(channelID, m.ID, m.Muted, m.Deafened))
		if _, ok := known[m.ID.Num]; !ok {
			added = append(added, m)
		}
	}

	for _, info := range stored {
		if _, ok := seen[info.Num]; !ok {
			removed = append(removed, info.ID())
		}
	}

	if err := t.db.ReplaceAllMemberInfo(channelID, infos); err != nil {
		return nil, nil, fmt.Errorf("failed to replace members: %w", err)
	}
	return added, removed, nil
}

// Add records a newly joined member. It reports whether the member was
// actually created; a duplicate join event is absorbed without error.
func (t *Tracker) Add(channelID string, member message.Member) (bool, error) {
	_, err := t.db.CreateMemberInfo(channelID, member.ID, member.Muted, member.Deafened)
	if errors.Is(err, database.ErrMemberAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create member: %w", err)
	}
	return true, nil
}

// Remove deletes a departed member. Removing an unknown member is not an
// error; the relay may replay departures after a resync.
func (t *Tracker) Remove(channelID string, num uint64) error {
	err := t.db.DeleteMemberInfoByNum(channelID, num)
	if errors.Is(err, database.ErrMemberNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}

// UpdateFlags stores a member's advisory mute and deafen flags.
func (t *Tracker) UpdateFlags(channelID string, num uint64, muted, deafened bool) error {
	if _, err := t.db.UpdateMemberFlags(channelID, num, muted, deafened); err != nil {
		return fmt.Errorf("failed to update member flags: %w", err)
	}
	return nil
}

// UpdateSpeaking stores a member's speaking indicator.
func (t *Tracker) UpdateSpeaking(channelID string, num uint64, speaking bool) error {
	if _, err := t.db.UpdateMemberSpeaking(channelID, num, speaking); err != nil {
		return fmt.Errorf("failed to update member speaking: %w", err)
	}
	return nil
}

// Members returns the stored roster for channelID.
func (t *Tracker) Members(channelID string) ([]*database.MemberInfo, error) {
	return t.db.FindAllMemberInfo(channelID)
}

// Clear drops all stored members for channelID.
func (t *Tracker) Clear(channelID string) error {
	if err := t.db.DeleteAllMemberInfo(channelID); err != nil {
		return fmt.Errorf("failed to delete members: %w", err)
	}
	return nil
}
