package signal

import "time"

// Outbound event payloads. Every event carries its own "type"
// discriminator so the client can dispatch without a shared envelope.

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorOf(msg string) errorEvent {
	return errorEvent{Type: "error", Message: msg}
}

type joinedEvent struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

type roomCreatedEvent struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

type systemEvent struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func systemOf(content string) systemEvent {
	return systemEvent{Type: "system", Content: content, Timestamp: isoNow()}
}

type userListEvent struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

func userListOf(users []string) userListEvent {
	return userListEvent{Type: "userList", Users: users}
}

type messageEvent struct {
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type typingEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

func isoNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
