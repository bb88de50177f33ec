package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Learner is an account in the learner identity pool (PostgreSQL)
type Learner struct {
	AccountID string    `json:"account_id" gorm:"primaryKey;size:128"`
	Name      string    `json:"name"`
	Email     string    `json:"email" gorm:"uniqueIndex"` // Lookup key for connection requests
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToProfile converts the learner record into a participant profile
func (l *Learner) ToProfile() ParticipantProfile {
	return ParticipantProfile{
		ID:     l.AccountID,
		Name:   l.Name,
		Avatar: l.AvatarURL,
		Email:  l.Email,
		Pool:   PoolLearner,
	}
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}
