package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSessionDisplaced notifies a user that a newer login replaced their session.
	TaskTypeSessionDisplaced = "auth:session_displaced"
)

// SessionDisplacedPayload describes a session that was replaced by a newer login.
type SessionDisplacedPayload struct {
	UserID             string    `json:"user_id"`
	Email              string    `json:"email"`
	DisplacedSessionID string    `json:"displaced_session_id"`
	At                 time.Time `json:"at"`
}

// NewSessionDisplacedTask constructs an Asynq task.
func NewSessionDisplacedTask(payload SessionDisplacedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSessionDisplaced, data), nil
}
