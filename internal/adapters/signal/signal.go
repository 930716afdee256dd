package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// ChatWSController drives the per-connection protocol: it validates
// inbound events against session and room state, mutates the Registry,
// and pushes outbound events through the Fanout.
type ChatWSController struct {
	Registry *app.Registry
	Fanout   *app.Fanout
	Limiter  *SessionRateLimiter
	validate *validator.Validate
	cfg      *config.Config
}

func NewChatWSController(cfg *config.Config, reg *app.Registry) *ChatWSController {
	return &ChatWSController{
		Registry: reg,
		Fanout:   app.NewFanout(reg),
		Limiter:  NewSessionRateLimiter(cfg.ChatBurst, cfg.ChatWindow),
		validate: validator.New(),
		cfg:      cfg,
	}
}

// WsChatConn wraps one websocket with a buffered outbound queue so
// broadcasts never block on a slow peer.
type WsChatConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsChatConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsChatConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the connection's pumps.
// Each connection gets a fresh session identity; two tabs of the same
// browser are two sessions.
func (ctl *ChatWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.cfg.ReadLimit)

	conn := &WsChatConn{
		conn: ws,
		send: make(chan core.Frame, ctl.cfg.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.Bind(sid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
