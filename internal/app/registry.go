package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrNameTaken      = errors.New("name taken in room")
	ErrAlreadyJoined  = errors.New("session already in a room")
	ErrSessionUnknown = errors.New("session unknown")
)

type sessionEntry struct {
	Name   string
	Room   domain.RoomCode
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// Registry owns all room and session state. A single lock covers both
// maps so that the name-uniqueness check and the insertion in AddMember
// are atomic, and so a room is deleted in the same critical section
// that empties it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	rooms    map[domain.RoomCode][]core.SessionID // members in join order
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		rooms:    make(map[domain.RoomCode][]core.SessionID),
	}
}

// Bind registers a freshly accepted connection. Name and room stay
// unset until AddMember succeeds.
func (r *Registry) Bind(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound session")
}

// CreateRoom inserts an empty room under a code not currently in use
// and returns the code. Collisions are regenerated away under the lock,
// so CreateRoom never fails.
func (r *Registry) CreateRoom() domain.RoomCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	code := newRoomCode()
	for {
		if _, exists := r.rooms[code]; !exists {
			break
		}
		code = newRoomCode()
	}
	r.rooms[code] = []core.SessionID{}
	log.Info().Str("module", "app.registry").Str("room", string(code)).Msg("room created")
	return code
}

func (r *Registry) RoomExists(code domain.RoomCode) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[code]
	return ok
}

// AddMember inserts the session into the room and binds its display
// name and room code in one step, so a session is never observable as
// partially joined. A session that is already in a room is rejected.
func (r *Registry) AddMember(code domain.RoomCode, sid core.SessionID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return ErrSessionUnknown
	}
	if entry.Room != "" {
		return ErrAlreadyJoined
	}
	members, ok := r.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	for _, other := range members {
		if e, ok := r.sessions[other]; ok && e.Name == name {
			return ErrNameTaken
		}
	}
	entry.Name = name
	entry.Room = code
	r.rooms[code] = append(members, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(code)).Str("name", name).Msg("member added")
	return nil
}

// RemoveMember drops the session from the room, deleting the room in
// the same step if it becomes empty. Absent room or session is a no-op
// so disconnect cleanup stays idempotent.
func (r *Registry) RemoveMember(code domain.RoomCode, sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok && entry.Room == code {
		entry.Name = ""
		entry.Room = ""
	}
	r.removeLocked(code, sid)
}

func (r *Registry) removeLocked(code domain.RoomCode, sid core.SessionID) int {
	members, ok := r.rooms[code]
	if !ok {
		return 0
	}
	next := lo.Without(members, sid)
	if len(next) == len(members) {
		return len(members)
	}
	if len(next) == 0 {
		delete(r.rooms, code)
		log.Info().Str("module", "app.registry").Str("room", string(code)).Msg("room deleted (empty)")
		return 0
	}
	r.rooms[code] = next
	return len(next)
}

// DisplayNames returns member names in join order; empty when the room
// is absent.
func (r *Registry) DisplayNames(code domain.RoomCode) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.FilterMap(r.rooms[code], func(sid core.SessionID, _ int) (string, bool) {
		e, ok := r.sessions[sid]
		if !ok {
			return "", false
		}
		return e.Name, true
	})
}

// Members snapshots the room for fanout. The snapshot is taken under
// the read lock; sends happen outside it.
func (r *Registry) Members(code domain.RoomCode) []core.MemberSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.FilterMap(r.rooms[code], func(sid core.SessionID, _ int) (core.MemberSnap, bool) {
		e, ok := r.sessions[sid]
		if !ok {
			return core.MemberSnap{}, false
		}
		return core.MemberSnap{SID: sid, Name: e.Name, Conn: e.Conn}, true
	})
}

// SessionOf reports the session's bound name and room. ok is false for
// unknown or not-yet-joined sessions.
func (r *Registry) SessionOf(sid core.SessionID) (name string, room domain.RoomCode, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, found := r.sessions[sid]
	if !found || entry.Room == "" {
		return "", "", false
	}
	return entry.Name, entry.Room, true
}

// Disconnect unbinds the session and removes it from its room in one
// critical section, then cancels the session context. Safe to call
// more than once; only the first call has any effect. wasBound reports
// whether the session had joined a room, and remaining how many members
// the room still has (0 means the room was deleted).
func (r *Registry) Disconnect(sid core.SessionID) (code domain.RoomCode, name string, remaining int, wasBound bool) {
	r.mu.Lock()
	entry, ok := r.sessions[sid]
	if !ok {
		r.mu.Unlock()
		return "", "", 0, false
	}
	delete(r.sessions, sid)
	if entry.Room != "" {
		remaining = r.removeLocked(entry.Room, sid)
	}
	r.mu.Unlock()

	if entry.Cancel != nil {
		entry.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session disconnected")
	if entry.Room == "" {
		return "", "", 0, false
	}
	return entry.Room, entry.Name, remaining, true
}

// Rooms lists all rooms with their member counts.
func (r *Registry) Rooms() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for code, members := range r.rooms {
		out = append(out, core.RoomInfo{Code: code, MemberCount: len(members)})
	}
	return out
}
