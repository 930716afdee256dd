package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

func (ctl *ChatWSController) handleJoin(sid core.SessionID, conn core.SignalConnection, data []byte) {
	type joinPayload struct {
		Type     string `json:"type"`
		Username string `json:"username" validate:"required"`
		RoomCode string `json:"roomCode" validate:"required"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		return
	}
	if err := ctl.validate.Struct(p); err != nil {
		ctl.Fanout.Unicast(conn, errorOf("Username and room code are required"))
		return
	}
	if err := domain.ValidateUsername(p.Username); err != nil {
		ctl.Fanout.Unicast(conn, errorOf("Username is invalid"))
		return
	}

	code := domain.RoomCode(p.RoomCode)
	err := ctl.Registry.AddMember(code, sid, p.Username)
	switch {
	case errors.Is(err, app.ErrAlreadyJoined):
		ctl.Fanout.Unicast(conn, errorOf("Already in a room"))
		return
	case errors.Is(err, app.ErrRoomNotFound):
		ctl.Fanout.Unicast(conn, errorOf("Room not found"))
		return
	case errors.Is(err, app.ErrNameTaken):
		ctl.Fanout.Unicast(conn, errorOf("Username already taken in this room"))
		return
	case err != nil:
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join rejected")
		ctl.Fanout.Unicast(conn, errorOf("Unable to join room"))
		return
	}

	ctl.Fanout.Unicast(conn, joinedEvent{Type: "joined", RoomCode: p.RoomCode, Username: p.Username})
	ctl.Fanout.Broadcast(code, systemOf(p.Username+" joined the chat"), sid)
	ctl.Fanout.Broadcast(code, userListOf(ctl.Registry.DisplayNames(code)), "")
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomCode).Str("name", p.Username).Msg("join")
}

func (ctl *ChatWSController) handleCreateRoom(sid core.SessionID, conn core.SignalConnection, data []byte) {
	type createPayload struct {
		Type     string `json:"type"`
		Username string `json:"username" validate:"required"`
	}
	var p createPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad createRoom payload")
		return
	}
	if err := ctl.validate.Struct(p); err != nil {
		ctl.Fanout.Unicast(conn, errorOf("Username is required"))
		return
	}
	if err := domain.ValidateUsername(p.Username); err != nil {
		ctl.Fanout.Unicast(conn, errorOf("Username is invalid"))
		return
	}
	// Events from one connection are handled sequentially by its read
	// pump, so checking before creating cannot race with this session
	// binding itself elsewhere.
	if _, _, bound := ctl.Registry.SessionOf(sid); bound {
		ctl.Fanout.Unicast(conn, errorOf("Already in a room"))
		return
	}

	code := ctl.Registry.CreateRoom()
	if err := ctl.Registry.AddMember(code, sid, p.Username); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("createRoom bind failed")
		ctl.Fanout.Unicast(conn, errorOf("Unable to create room"))
		return
	}

	ctl.Fanout.Unicast(conn, roomCreatedEvent{Type: "roomCreated", RoomCode: string(code), Username: p.Username})
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(code)).Str("name", p.Username).Msg("room created")
}
