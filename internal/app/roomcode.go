package app

import (
	"crypto/rand"

	"github.com/dkeye/Relay/internal/domain"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newRoomCode returns a short uppercase alphanumeric token. Uniqueness
// against live rooms is the caller's job (CreateRoom regenerates on
// collision under the registry lock).
func newRoomCode() domain.RoomCode {
	buf := make([]byte, domain.RoomCodeLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return domain.RoomCode(buf)
}
