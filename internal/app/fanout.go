package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// Fanout delivers events to room members. It holds no state of its own;
// membership comes from the Registry snapshot. Delivery is best-effort
// per recipient: a failed send is logged and the remaining members
// still receive the event.
type Fanout struct {
	Registry *Registry
}

func NewFanout(reg *Registry) *Fanout {
	return &Fanout{Registry: reg}
}

// Broadcast serializes v once and pushes it to every member of the
// room except exclude. Pass an empty exclude to reach everyone.
func (f *Fanout) Broadcast(code domain.RoomCode, v any, exclude core.SessionID) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Msg("marshal broadcast")
		return
	}
	sent := 0
	for _, m := range f.Registry.Members(code) {
		if m.SID == exclude {
			continue
		}
		if err := m.Conn.TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "app.fanout").Str("sid", string(m.SID)).Msg("dropped frame")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.fanout").Str("room", string(code)).Int("sent_to", sent).Msg("broadcast")
}

// Unicast sends v to exactly one connection. Used for confirmations
// and errors that must not reach the rest of the room.
func (f *Fanout) Unicast(conn core.SignalConnection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Msg("marshal unicast")
		return
	}
	if err := conn.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "app.fanout").Msg("unicast dropped")
	}
}
