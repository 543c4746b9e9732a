package model

import "time"

// JournalKind is the kind of canvas activity recorded in the journal.
type JournalKind string

const (
	JournalKindStroke JournalKind = "stroke"
	JournalKindClear  JournalKind = "clear"
)

// JournalEntry is one recorded canvas mutation. The journal is an audit trail
// only and is never replayed into the canvas history.
type JournalEntry struct {
	ID        string      `json:"id"`
	Kind      JournalKind `json:"kind"`
	Client    string      `json:"client"`
	Points    int         `json:"points"`
	Color     string      `json:"color,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}
