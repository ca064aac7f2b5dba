// Package domain defines the persistence models and shared value types of the
// triage backend: chat sessions, idempotency records, client-side local state,
// and the wire shapes exchanged between the client and the API.
package domain

import "time"

// Chat roles. The model provider only accepts these two.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatTurn is one entry of a conversation history.
type ChatTurn struct {
	Role  string   `json:"role"`
	Parts []string `json:"parts"`
}

// ChatSession is the server-held triage conversation of a single user.
//
// Fields:
//   - UserID: owner and primary key; a user has at most one live session.
//   - Language: canonical BCP-47 tag the session was started in. A request in
//     another language starts a fresh session.
//   - History: ordered turns, stored as a JSON column.
//   - Terminal: set once the model has returned a triage result; the next
//     message starts over.
type ChatSession struct {
	UserID    string     `json:"user_id"   gorm:"type:varchar(64);primaryKey"`
	Language  string     `json:"language"  gorm:"type:varchar(35);not null"`
	History   []ChatTurn `json:"history"   gorm:"serializer:json;type:text;not null"`
	Terminal  bool       `json:"terminal"  gorm:"not null;default:false"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ChatSession.
func (ChatSession) TableName() string { return "chat_sessions" }

// LocalState is a client-side durable document keyed by collection name.
// Whole collections are written in one statement, so a write either fully
// lands or leaves the previous document untouched.
type LocalState struct {
	Key       string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for LocalState.
func (LocalState) TableName() string { return "local_state" }
