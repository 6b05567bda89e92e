package models

import "errors"

var (
	ErrNotFound = errors.New("not found")
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleTeacher  Role = "teacher"
	RoleGuardian Role = "guardian"
)

// User represents a user in the system.
type User struct {
	ID          string   `json:"id"`
	UserName    string   `json:"userName"`
	DisplayName string   `json:"displayName"`
	Role        Role     `json:"role"`
	Presence    Presence `json:"presence"`
}

// Presence represents the online status of a user.
type Presence struct {
	Online bool `json:"online"`
	// LastConnection is the unix timestamp (seconds) of the moment the
	// user last came online. It is not touched on disconnect.
	LastConnection int64 `json:"lastConnection"`
}

// Message represents a persisted chat message.
type Message struct {
	Seq          int64  `json:"seq"`
	Timestamp    int64  `json:"timestamp"` // Unix timestamp (seconds)
	Conversation string `json:"conversation"`
	UserID       string `json:"userId"`
	Content      string `json:"content"`
	ImageID      string `json:"imageId,omitempty"`
}

// ClientEnvelope is a message sent by the client on a chat connection.
type ClientEnvelope struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// ServerEnvelope is a message sent to the client on either realtime
// connection. Which field accompanies Type depends on the message kind.
type ServerEnvelope struct {
	Type        MessageType `json:"type"`
	Message     string      `json:"message,omitempty"`
	UserID      string      `json:"user_id,omitempty"`
	UsersOnline []string    `json:"users_online,omitempty"`
}

type MessageType string

const (
	// Chat channel, both directions.
	MessageTypeChat   MessageType = "chat_message"
	MessageTypeRecent MessageType = "recent_message"

	// Presence channel, server to client.
	MessageTypeUserConnected    MessageType = "user_connected"
	MessageTypeUserDisconnected MessageType = "user_disconnected"
	MessageTypeOnlineUsers      MessageType = "online_users"
)
