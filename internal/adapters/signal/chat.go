package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
)

// handleChat relays a chat line to the whole room, sender included.
// Unbound sessions and empty content are dropped without a reply,
// matching the client protocol.
func (ctl *ChatWSController) handleChat(sid core.SessionID, data []byte) {
	name, room, bound := ctl.Registry.SessionOf(sid)
	if !bound {
		return
	}
	type chatPayload struct {
		Type    string `json:"type"`
		Content string `json:"content" validate:"required"`
	}
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad chat payload")
		return
	}
	if err := ctl.validate.Struct(p); err != nil {
		return
	}
	if !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("chat rate limited")
		return
	}

	ctl.Fanout.Broadcast(room, messageEvent{
		Type:      "message",
		Sender:    name,
		Content:   p.Content,
		Timestamp: isoNow(),
	}, "")
	log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("room", string(room)).Msg("chat")
}

// handleTyping relays typing status to everyone else in the room.
func (ctl *ChatWSController) handleTyping(sid core.SessionID, data []byte) {
	name, room, bound := ctl.Registry.SessionOf(sid)
	if !bound {
		return
	}
	type typingPayload struct {
		Type     string `json:"type"`
		IsTyping bool   `json:"isTyping"`
	}
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad typing payload")
		return
	}

	ctl.Fanout.Broadcast(room, typingEvent{
		Type:     "typing",
		Username: name,
		IsTyping: p.IsTyping,
	}, sid)
}
