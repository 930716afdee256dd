package core

import "github.com/dkeye/Relay/internal/domain"

// Frame is a serialized outbound event.
type Frame []byte

// SessionID is the identity of one live connection. Broadcast exclusion
// compares SessionIDs, never display names.
type SessionID string

// SignalConnection abstracts a messaging transport endpoint.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSnap is a read-only view of one room member, taken under the
// registry lock and safe to iterate outside it.
type MemberSnap struct {
	SID  SessionID
	Name string
	Conn SignalConnection
}

// RoomInfo is a read-only room summary for APIs (no transport fields).
type RoomInfo struct {
	Code        domain.RoomCode `json:"code"`
	MemberCount int             `json:"member_count"`
}
