package models

import "time"

// ConnectionStatus is the lifecycle state of a ConnectionRequest. A rejected
// request is deleted, so there is no rejected status.
type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "pending"
	ConnectionStatusAccepted ConnectionStatus = "accepted"
)

// ConnectionRequest represents a connection request between two accounts
type ConnectionRequest struct {
	ID            string           `json:"id" gorm:"primaryKey;size:36"`
	SenderID      string           `json:"sender_id" gorm:"index;not null;size:128"`
	ReceiverID    string           `json:"receiver_id" gorm:"index;not null;size:128"`
	SenderName    string           `json:"sender_name"`
	ReceiverName  string           `json:"receiver_name"`
	ReceiverEmail string           `json:"receiver_email"`
	PairKey       string           `json:"-" gorm:"uniqueIndex;not null;size:260"` // canonical sorted pair, one request per pair
	Status        ConnectionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	CreatedAt     time.Time        `json:"created_at"`
	AcceptedAt    *time.Time       `json:"accepted_at,omitempty"`
}

// TableName keeps the logical collection name
func (ConnectionRequest) TableName() string {
	return "connections"
}

// Counterpart returns the id and denormalized name of the other side of the request
func (r *ConnectionRequest) Counterpart(accountID string) (id, name string) {
	if r.SenderID == accountID {
		return r.ReceiverID, r.ReceiverName
	}
	return r.SenderID, r.SenderName
}

// CreateConnectionRequest defines the request body for sending a connection request
type CreateConnectionRequest struct {
	ReceiverEmail string `json:"receiver_email" validate:"required,email"`
}

// Connection is an accepted peer as shown in a connection list
type Connection struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar,omitempty"`
	RequestID string `json:"request_id"`
}
