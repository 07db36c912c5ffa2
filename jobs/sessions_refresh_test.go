package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcart/console/internal/access"
	jobmetrics "github.com/freshcart/console/internal/jobs"
	"github.com/freshcart/console/internal/shared"
)

type stubRecords struct {
	records []access.RawPermission
	err     error
}

func (s stubRecords) ListPermissions(ctx context.Context, userID int64) ([]access.RawPermission, error) {
	return s.records, s.err
}

type stubEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	s.opts = append(s.opts, opts)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (s *stubEnqueuer) Close() error { return nil }

func newSessions(t *testing.T) *shared.SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func openSession(t *testing.T, sm *shared.SessionManager, actor access.Actor) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.Login(actor, json.RawMessage(`[]`))
	require.NoError(t, sm.Commit(context.Background(), httptest.NewRecorder(), req, sess))
	return sess.ID
}

func loadIdentity(t *testing.T, sm *shared.SessionManager, id string) shared.Identity {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: id})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	identity, ok := sess.Identity()
	require.True(t, ok)
	return identity
}

func TestSessionsRefreshRewritesPayload(t *testing.T) {
	sm := newSessions(t)
	id := openSession(t, sm, access.Actor{ID: "12", Role: access.RoleManager})
	other := openSession(t, sm, access.Actor{ID: "13", Role: access.RoleManager})

	job := NewSessionsRefreshJob(stubRecords{records: []access.RawPermission{{Module: "canAccessUsers", CanRead: true, CanUpdate: true}}}, sm, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewSessionsRefreshTask(SessionsRefreshPayload{UserID: 12})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))

	identity := loadIdentity(t, sm, id)
	caps := access.ResolveActor(&identity.Actor, identity.Permissions)
	assert.True(t, caps.Can(access.ModuleUsers, access.ActionUpdate))
	assert.False(t, caps.Can(access.ModuleUsers, access.ActionView))

	untouched := loadIdentity(t, sm, other)
	assert.JSONEq(t, `[]`, string(untouched.Permissions))
}

func TestSessionsRefreshClearsPayloadWhenNoRecords(t *testing.T) {
	sm := newSessions(t)
	id := openSession(t, sm, access.Actor{ID: "4", Role: access.RoleSupport})

	job := NewSessionsRefreshJob(stubRecords{}, sm, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewSessionsRefreshTask(SessionsRefreshPayload{UserID: 4})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	identity := loadIdentity(t, sm, id)
	assert.Empty(t, identity.Permissions)
	assert.Equal(t, access.RoleSupport, identity.Actor.Role)
}

func TestSessionsRefreshPropagatesLoadError(t *testing.T) {
	sm := newSessions(t)
	job := NewSessionsRefreshJob(stubRecords{err: errors.New("db down")}, sm, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewSessionsRefreshTask(SessionsRefreshPayload{UserID: 4})
	require.NoError(t, err)

	assert.EqualError(t, job.Handle(context.Background(), task), "db down")
}

func TestSessionsRefreshBadPayloadSkipsRetry(t *testing.T) {
	job := NewSessionsRefreshJob(stubRecords{}, newSessions(t), nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskSessionsRefresh, []byte(`{"user_id":"x"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewSessionsRefreshTaskRejectsInvalidUser(t *testing.T) {
	_, err := NewSessionsRefreshTask(SessionsRefreshPayload{})
	assert.Error(t, err)
}

func TestClientEnqueuesRefresh(t *testing.T) {
	enq := &stubEnqueuer{}
	client := NewClientWith(enq)

	require.NoError(t, client.EnqueueSessionsRefresh(context.Background(), 99))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskSessionsRefresh, enq.tasks[0].Type())
	assert.JSONEq(t, `{"user_id":99}`, string(enq.tasks[0].Payload()))
}

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.health(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	assert.Error(t, err)
}
