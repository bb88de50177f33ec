package models

import "time"

// Message types
const (
	MessageTypeText = "text"
)

// Message body encodings. Records written before encoding tags existed have
// an empty Encoding and go through the marker heuristic.
const (
	EncodingPlaintext = "plaintext"
	EncodingV1Cipher  = "v1-cipher"
)

// ChatSession is the single conversation between an unordered pair of accounts (MongoDB)
type ChatSession struct {
	ID                string     `json:"id" bson:"_id"`
	Participants      []string   `json:"participants" bson:"participants"` // always sorted, len 2
	PairKey           string     `json:"-" bson:"pair_key"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" bson:"updated_at"`
	LastMessage       *string    `json:"last_message" bson:"last_message"` // ciphertext as stored
	LastMessageTime   *time.Time `json:"last_message_time" bson:"last_message_time"`
	LastMessageSender *string    `json:"last_message_sender" bson:"last_message_sender"`
	LastMessageSeq    int64      `json:"-" bson:"last_message_seq"`
	MessageSeq        int64      `json:"-" bson:"message_seq"`
	MessageClock      *time.Time `json:"-" bson:"message_clock"` // timestamp handed to message MessageSeq
}

// HasParticipant reports whether accountID is one of the two participants
func (s *ChatSession) HasParticipant(accountID string) bool {
	for _, p := range s.Participants {
		if p == accountID {
			return true
		}
	}
	return false
}

// Message is a single entry of a chat session's append-only log (MongoDB)
type Message struct {
	ID        string    `json:"id" bson:"_id"`
	ChatID    string    `json:"chat_id" bson:"chat_id"`
	SenderID  string    `json:"sender_id" bson:"sender_id"`
	Body      string    `json:"text" bson:"body"`
	Encoding  string    `json:"-" bson:"encoding,omitempty"`
	Type      string    `json:"type" bson:"type"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Seq       int64     `json:"seq" bson:"seq"`
	IsRead    bool      `json:"is_read" bson:"is_read"`
}

// SendMessageRequest defines the request body for sending a chat message
type SendMessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
	Type string `json:"type,omitempty" validate:"omitempty,max=20"`
}

// ResolveChatRequest defines the request body for resolving a chat session
type ResolveChatRequest struct {
	AccountA string `json:"account_a" validate:"required"`
	AccountB string `json:"account_b" validate:"required"`
}
