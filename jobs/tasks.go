package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsRefresh rewrites the permission payload held by the live
	// sessions of one user.
	TaskSessionsRefresh = "access:sessions_refresh"
)

// SessionsRefreshPayload identifies the user whose sessions to refresh.
type SessionsRefreshPayload struct {
	UserID int64 `json:"user_id"`
}

// NewSessionsRefreshTask constructs an Asynq task.
func NewSessionsRefreshTask(payload SessionsRefreshPayload) (*asynq.Task, error) {
	if payload.UserID <= 0 {
		return nil, fmt.Errorf("jobs: sessions refresh: invalid user id %d", payload.UserID)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionsRefresh, data,
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}
