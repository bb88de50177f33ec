package models

// Identity pool names
const (
	PoolLearner    = "learner"
	PoolInstructor = "instructor"
)

// ParticipantProfile is the lightweight profile shown next to chat messages
type ParticipantProfile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Email  string `json:"email,omitempty"`
	Pool   string `json:"pool"`
}
