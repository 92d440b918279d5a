// Package memory provides an in-memory database implementation.
package memory

import "github.com/hashicorp/go-memdb"

const (
	tblSessions = "sessions"
	tblMembers  = "members"
)

const (
	idxSessionID       = "id"
	idxMemberNum       = "id"
	idxMemberChannelID = "channel_id"
)

// schema is the schema of the memory database.
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblSessions: {
			Name: tblSessions,
			Indexes: map[string]*memdb.IndexSchema{
				idxSessionID: {
					Name:    idxSessionID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		},
		tblMembers: {
			Name: tblMembers,
			Indexes: map[string]*memdb.IndexSchema{
				idxMemberNum: {
					Name:   idxMemberNum,
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "ChannelID"},
							&memdb.UintFieldIndex{Field: "Num"},
						},
					},
				},
				idxMemberChannelID: {
					Name:    idxMemberChannelID,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "ChannelID"},
				},
			},
		},
	},
}
