package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/freshcart/console/internal/access"
	jobmetrics "github.com/freshcart/console/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PermissionSource loads the current permission records of a user.
type PermissionSource interface {
	ListPermissions(ctx context.Context, userID int64) ([]access.RawPermission, error)
}

// SessionStore rewrites the permission payload of live sessions.
type SessionStore interface {
	ReplacePermissions(ctx context.Context, userID string, payload json.RawMessage) (int, error)
}

// SessionsRefreshJob keeps session payloads in step with admin edits.
type SessionsRefreshJob struct {
	Records  PermissionSource
	Sessions SessionStore
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewSessionsRefreshJob wires dependencies for the refresh handler.
func NewSessionsRefreshJob(records PermissionSource, sessions SessionStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionsRefreshJob {
	return &SessionsRefreshJob{Records: records, Sessions: sessions, Logger: logger, Metrics: metrics}
}

// Handle processes TaskSessionsRefresh tasks.
func (j *SessionsRefreshJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Records == nil || j.Sessions == nil {
		return errors.New("sessions refresh: handler not configured")
	}
	tracker := j.metrics().Track(TaskSessionsRefresh)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	var payload SessionsRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.UserID <= 0 {
		return fmt.Errorf("sessions refresh: bad payload: %w", asynq.SkipRetry)
	}

	logger := j.logger().With(slog.Int64("user_id", payload.UserID))
	records, err := j.Records.ListPermissions(ctx, payload.UserID)
	if err != nil {
		logger.Error("load permissions", slog.Any("error", err))
		return err
	}
	encoded, err := access.EncodePayload(records)
	if err != nil {
		return err
	}
	updated, err := j.Sessions.ReplacePermissions(ctx, strconv.FormatInt(payload.UserID, 10), encoded)
	if err != nil {
		logger.Error("replace session permissions", slog.Any("error", err))
		return err
	}
	j.metrics().ObserveRefresh(updated)
	logger.Info("sessions refreshed", slog.Int("sessions", updated))
	return nil
}

func (j *SessionsRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SessionsRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
