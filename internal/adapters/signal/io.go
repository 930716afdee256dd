package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
)

func (ctl *ChatWSController) writePump(ctx context.Context, c *WsChatConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *ChatWSController) readPump(ctx context.Context, sid core.SessionID, c *WsChatConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.handleDisconnect(sid)
		c.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleEvent(sid, c, data)
		}
	}
}

// handleEvent dispatches one inbound frame on its type discriminator.
// Frames that do not decode are dropped without a reply; echoing parse
// errors back would just relay attacker-controlled noise.
func (ctl *ChatWSController) handleEvent(sid core.SessionID, c core.SignalConnection, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(sid, c, data)
	case "createRoom":
		ctl.handleCreateRoom(sid, c, data)
	case "chat":
		ctl.handleChat(sid, data)
	case "typing":
		ctl.handleTyping(sid, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event type")
	}
}

// handleDisconnect runs the teardown for a closed connection. The
// registry makes it idempotent, so a second call is a no-op.
func (ctl *ChatWSController) handleDisconnect(sid core.SessionID) {
	ctl.Limiter.Forget(sid)
	code, name, remaining, wasBound := ctl.Registry.Disconnect(sid)
	if !wasBound {
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(code)).Str("name", name).Msg("left room")
	if remaining == 0 {
		// Room was deleted with the last member; nobody is left to tell.
		return
	}
	ctl.Fanout.Broadcast(code, systemOf(name+" left the chat"), "")
	ctl.Fanout.Broadcast(code, userListOf(ctl.Registry.DisplayNames(code)), "")
}
