package models

// ChatMessage is a room-scoped message delivered over the realtime
// channel or fetched via REST history. MessageID is the identity;
// duplicate deliveries of the same ID must be suppressed.
type ChatMessage struct {
	MessageID         string `json:"message_id"`
	UserID            string `json:"user_id"`
	Username          string `json:"username"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	ProfilePictureURL string `json:"profile_picture_url"`
	Message           string `json:"message"`
	Timestamp         int64  `json:"timestamp"`
}

// TypingEvent signals that a user started or stopped typing.
// Ephemeral; the latest event per UserID supersedes earlier ones.
type TypingEvent struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	Typing    bool   `json:"typing"`
}

// RoomPresenceEvent signals a user joining or leaving a room.
type RoomPresenceEvent struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// MessageDeletedEvent signals server-side deletion of a message.
type MessageDeletedEvent struct {
	MessageID string `json:"message_id"`
}
