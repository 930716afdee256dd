package signal

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) last(t *testing.T) map[string]any {
	t.Helper()
	evts := c.events(t)
	require.NotEmpty(t, evts)
	return evts[len(evts)-1]
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func newTestController() *ChatWSController {
	cfg := &config.Config{
		ChatBurst:  10,
		ChatWindow: time.Second,
		SendBuffer: 32,
	}
	return NewChatWSController(cfg, app.NewRegistry())
}

func connect(ctl *ChatWSController, sid core.SessionID) *fakeConn {
	conn := &fakeConn{}
	ctl.Registry.Bind(sid, conn, func() {})
	return conn
}

func send(ctl *ChatWSController, sid core.SessionID, conn *fakeConn, event string) {
	ctl.handleEvent(sid, conn, []byte(event))
}

// createRoomAs drives a createRoom event and returns the assigned code.
func createRoomAs(t *testing.T, ctl *ChatWSController, sid core.SessionID, conn *fakeConn, username string) string {
	t.Helper()
	send(ctl, sid, conn, fmt.Sprintf(`{"type":"createRoom","username":%q}`, username))
	got := conn.last(t)
	require.Equal(t, "roomCreated", got["type"])
	require.Equal(t, username, got["username"])
	code, ok := got["roomCode"].(string)
	require.True(t, ok)
	require.Len(t, code, domain.RoomCodeLen)
	return code
}

func TestCreateRoomThenJoin(t *testing.T) {
	ctl := newTestController()
	a := connect(ctl, "A")
	b := connect(ctl, "B")

	code := createRoomAs(t, ctl, "A", a, "alice")
	a.reset()

	send(ctl, "B", b, fmt.Sprintf(`{"type":"join","username":"bob","roomCode":%q}`, code))

	bEvents := b.events(t)
	require.Equal(t, "joined", bEvents[0]["type"])
	require.Equal(t, code, bEvents[0]["roomCode"])
	require.Equal(t, "bob", bEvents[0]["username"])

	aEvents := a.events(t)
	require.Equal(t, "system", aEvents[0]["type"])
	require.Equal(t, "bob joined the chat", aEvents[0]["content"])
	require.NotEmpty(t, aEvents[0]["timestamp"])

	// both get the refreshed list in join order
	require.Equal(t, "userList", aEvents[1]["type"])
	require.Equal(t, []any{"alice", "bob"}, aEvents[1]["users"])
	require.Equal(t, "userList", bEvents[1]["type"])
	require.Equal(t, []any{"alice", "bob"}, bEvents[1]["users"])

	// joiner does not get their own join notice
	for _, evt := range bEvents {
		require.NotEqual(t, "system", evt["type"])
	}
}

func TestJoinMissingFields(t *testing.T) {
	ctl := newTestController()
	b := connect(ctl, "B")

	for _, event := range []string{
		`{"type":"join"}`,
		`{"type":"join","username":"bob"}`,
		`{"type":"join","roomCode":"ABC123"}`,
		`{"type":"join","username":"","roomCode":""}`,
	} {
		b.reset()
		send(ctl, "B", b, event)
		got := b.last(t)
		require.Equal(t, "error", got["type"])
		require.Equal(t, "Username and room code are required", got["message"])
	}
}

func TestJoinRoomNotFound(t *testing.T) {
	ctl := newTestController()
	b := connect(ctl, "B")

	send(ctl, "B", b, `{"type":"join","username":"bob","roomCode":"NOPE42"}`)

	got := b.last(t)
	require.Equal(t, "error", got["type"])
	require.Equal(t, "Room not found", got["message"])
	_, _, bound := ctl.Registry.SessionOf("B")
	require.False(t, bound)
}

func TestJoinNameTaken(t *testing.T) {
	ctl := newTestController()
	a := connect(ctl, "A")
	b := connect(ctl, "B")

	code := createRoomAs(t, ctl, "A", a, "alice")
	send(ctl, "B", b, fmt.Sprintf(`{"type":"join","username":"alice","roomCode":%q}`, code))

	got := b.last(t)
	require.Equal(t, "error", got["type"])
	require.Equal(t, "Username already taken in this room", got["message"])
	require.Equal(t, []string{"alice"}, ctl.Registry.DisplayNames(domain.RoomCode(code)))
}

func TestJoinUsernameTooLong(t *testing.T) {
	ctl := newTestController()
	b := connect(ctl, "B")

	long := make([]byte, domain.MaxUsernameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	send(ctl, "B", b, fmt.Sprintf(`{"type":"join","username":%q,"roomCode":"ABC123"}`, string(long)))

	got := b.last(t)
	require.Equal(t, "error", got["type"])
	require.Equal(t, "Username is invalid", got["message"])
}

func TestCreateRoomMissingUsername(t *testing.T) {
	ctl := newTestController()
	a := connect(ctl, "A")

	send(ctl, "A", a, `{"type":"createRoom"}`)

	got := a.last(t)
	require.Equal(t, "error", got["type"])
	require.Equal(t, "Username is required", got["message"])
	require.Empty(t, ctl.Registry.Rooms(), "failed createRoom must not leave a room behind")
}

func TestRebindRejected(t *testing.T) {
	ctl := newTestController()
	a := connect(ctl, "A")

	code := createRoomAs(t, ctl, "A", a, "alice")

	a.reset()
	send(ctl, "A", a, fmt.Sprintf(`{"type":"join","username":"alice2","roomCode":%q}`, code))
	got := a.last(t)
	require.Equal(t, "error", got["type"])
	require.Equal(t, "Already in a room", got["message"])

	a.reset()
	send(ctl, "A", a, `{"type":"createRoom","username":"alice2"}`)
	got = a.last(t)
	require.Equal(t, "error", got["type"])
	require.Equal(t, "Already in a room", got["message"])

	// the original binding is untouched
	name, room, bound := ctl.Registry.SessionOf("A")
	require.True(t, bound)
	require.Equal(t, "alice", name)
	require.Equal(t, domain.RoomCode(code), room)
	require.Len(t, ctl.Registry.Rooms(), 1)
}

func TestChatIncludesSender(t *testing.T) {
	ctl := newTestController()
	a := connect(ctl, "A")
	b := connect(ctl, "B")

	code := createRoomAs(t, ctl, "A", a, "alice")
	send(ctl, "B", b, fmt.Sprintf(`{"type":"join","username":"bob","roomCode":%q}`, code))
	a.reset()
	b.reset()

	send(ctl, "A", a, `{"type":"chat","content":"hi"}`)

	for _, conn := range []*fakeConn{a, b} {
		got := conn.last(t)
		require.Equal(t, "message", got["type"])
		require.Equal(t, "alice", got["sender"])
		require.Equal(t, "hi", got["content"])
		ts, ok := got["timestamp"].(string)
		require.True(t, ok)
		_, err := time.Parse(time.RFC3339, ts)
		require.NoError(t, err)
	}
}

func TestChatDroppedSilently(t *testing.T) {
	ctl := newTestController()
	a := connect(ctl, "A")

	// unbound sender
	send(ctl, "A", a, `{"type":"chat","content":"hi"}`)
	require.Empty(t, a.events(t))

	// empty content
	createRoomAs(t, ctl, "A", a, "alice")
	a.reset()
	send(ctl, "A", a, `{"type":"chat","content":""}`)
	require.Empty(t, a.events(t))
}

func TestTypingExcludesSender(t *testing.T) {
	ctl := newTestController()
	a := connect(ctl, "A")
	b := connect(ctl, "B")

	code := createRoomAs(t, ctl, "A", a, "alice")
	send(ctl, "B", b, fmt.Sprintf(`{"type":"join","username":"bob","roomCode":%q}`, code))
	a.reset()
	b.reset()

	send(ctl, "A", a, `{"type":"typing","isTyping":true}`)

	require.Empty(t, a.events(t))
	got := b.last(t)
	require.Equal(t, "typing", got["type"])
	require.Equal(t, "alice", got["username"])
	require.Equal(t, true, got["isTyping"])
}

func TestTypingUnboundDropped(t *testing.T) {
	ctl := newTestController()
	a := connect(ctl, "A")

	send(ctl, "A", a, `{"type":"typing","isTyping":true}`)
	require.Empty(t, a.events(t))
}

func TestUnknownAndMalformedDropped(t *testing.T) {
	ctl := newTestController()
	a := connect(ctl, "A")

	send(ctl, "A", a, `{"type":"dance"}`)
	send(ctl, "A", a, `{{{not json`)
	send(ctl, "A", a, ``)

	require.Empty(t, a.events(t))
}

func TestDisconnectFlow(t *testing.T) {
	ctl := newTestController()
	a := connect(ctl, "A")
	b := connect(ctl, "B")

	code := createRoomAs(t, ctl, "A", a, "alice")
	send(ctl, "B", b, fmt.Sprintf(`{"type":"join","username":"bob","roomCode":%q}`, code))
	a.reset()
	b.reset()

	ctl.handleDisconnect("A")

	bEvents := b.events(t)
	require.Equal(t, "system", bEvents[0]["type"])
	require.Equal(t, "alice left the chat", bEvents[0]["content"])
	require.Equal(t, "userList", bEvents[1]["type"])
	require.Equal(t, []any{"bob"}, bEvents[1]["users"])
	require.True(t, ctl.Registry.RoomExists(domain.RoomCode(code)))

	// cleanup is idempotent
	b.reset()
	ctl.handleDisconnect("A")
	require.Empty(t, b.events(t))

	// last member out deletes the room, nobody left to notify
	ctl.handleDisconnect("B")
	require.False(t, ctl.Registry.RoomExists(domain.RoomCode(code)))
}

func TestUnboundDisconnectIsNoOp(t *testing.T) {
	ctl := newTestController()
	connect(ctl, "A")

	ctl.handleDisconnect("A")
	require.Empty(t, ctl.Registry.Rooms())
}

func TestChatRateLimited(t *testing.T) {
	cfg := &config.Config{
		ChatBurst:  2,
		ChatWindow: time.Minute,
		SendBuffer: 32,
	}
	ctl := NewChatWSController(cfg, app.NewRegistry())
	a := connect(ctl, "A")
	createRoomAs(t, ctl, "A", a, "alice")
	a.reset()

	send(ctl, "A", a, `{"type":"chat","content":"one"}`)
	send(ctl, "A", a, `{"type":"chat","content":"two"}`)
	send(ctl, "A", a, `{"type":"chat","content":"three"}`)

	require.Len(t, a.events(t), 2, "third chat in the window is dropped")
}
