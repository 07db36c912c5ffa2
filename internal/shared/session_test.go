package shared

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcart/console/internal/access"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	sm, _, mr := newTestStore(t)
	return sm, mr
}

func newTestStore(t *testing.T) (*SessionManager, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "console_session", "secret", time.Hour, false), client, mr
}

func loginSession(t *testing.T, sm *SessionManager, actor access.Actor, payload json.RawMessage) *Session {
	t.Helper()
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Login(actor, payload)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), sess))
	return sess
}

// deleteAfterRead removes key from the server right after the first HGET of
// it completes, emulating a logout landing mid-update.
type deleteAfterRead struct {
	mr   *miniredis.Miniredis
	key  string
	once sync.Once
}

func (h *deleteAfterRead) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *deleteAfterRead) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		args := cmd.Args()
		if cmd.Name() == "hget" && len(args) > 1 && args[1] == h.key {
			h.once.Do(func() { h.mr.Del(h.key) })
		}
		return err
	}
}

func (h *deleteAfterRead) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func commitAndReload(t *testing.T, sm *SessionManager, sess *Session) *Session {
	t.Helper()
	ctx := context.Background()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), req, sess))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	return loaded
}

func TestSessionLoginPersistsIdentity(t *testing.T) {
	sm, mr := newTestManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	actor := access.Actor{ID: "42", Name: "Rina", Email: "rina@freshcart.test", Role: access.RoleSupport}
	payload := json.RawMessage(`[{"module":"canAccessTickets","canRead":true}]`)
	sess.Login(actor, payload)

	loaded := commitAndReload(t, sm, sess)
	identity, ok := loaded.Identity()
	require.True(t, ok)
	assert.Equal(t, actor.ID, identity.Actor.ID)
	assert.Equal(t, access.RoleSupport, identity.Actor.Role)
	assert.JSONEq(t, string(payload), string(identity.Permissions))

	members, err := mr.SMembers("session:user:42")
	require.NoError(t, err)
	assert.Equal(t, []string{sess.ID}, members)
}

func TestSessionLogoutClearsRoleAndPayloadTogether(t *testing.T) {
	sm, mr := newTestManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Login(access.Actor{ID: "7", Role: access.RoleManager}, json.RawMessage(`[]`))
	loaded := commitAndReload(t, sm, sess)

	loaded.Logout()
	_, ok := loaded.Identity()
	assert.False(t, ok)
	assert.Empty(t, loaded.User())

	reloaded := commitAndReload(t, sm, loaded)
	_, ok = reloaded.Identity()
	assert.False(t, ok)
	assert.Empty(t, mustMembers(t, mr, "session:user:7"))
}

func TestDestroyDeletesKey(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Login(access.Actor{ID: "9", Role: access.RoleAdmin}, nil)
	loaded := commitAndReload(t, sm, sess)
	require.True(t, mr.Exists("session:"+loaded.ID))

	sm.Destroy(loaded)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil), loaded))

	assert.False(t, mr.Exists("session:"+loaded.ID))
	assert.Empty(t, loaded.User())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestReplacePermissionsRewritesLiveSessions(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 2; i++ {
		sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		sess.Login(access.Actor{ID: "5", Role: access.RoleShopOwner}, json.RawMessage(`[]`))
		require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), sess))
		ids = append(ids, sess.ID)
	}
	mr.Del("session:" + ids[1])

	updated, err := sm.ReplacePermissions(ctx, "5", json.RawMessage(`[{"module":"canAccessLogs","canRead":true}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: ids[0]})
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	identity, ok := loaded.Identity()
	require.True(t, ok)
	assert.Equal(t, access.RoleShopOwner, identity.Actor.Role)
	assert.JSONEq(t, `[{"module":"canAccessLogs","canRead":true}]`, string(identity.Permissions))
	assert.Equal(t, []string{ids[0]}, mustMembers(t, mr, "session:user:5"))
}

func TestReplacePermissionsKeepsSessionTTL(t *testing.T) {
	sm, mr := newTestManager(t)
	sess := loginSession(t, sm, access.Actor{ID: "6", Role: access.RoleSupport}, json.RawMessage(`[]`))

	updated, err := sm.ReplacePermissions(context.Background(), "6", json.RawMessage(`[{"module":"canAccessUsers","canRead":true}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Greater(t, mr.TTL("session:"+sess.ID), time.Duration(0))
}

func TestReplacePermissionsSkipsSessionDeletedMidUpdate(t *testing.T) {
	sm, client, mr := newTestStore(t)
	sess := loginSession(t, sm, access.Actor{ID: "1", Role: access.RoleAdmin}, json.RawMessage(`[]`))
	client.AddHook(&deleteAfterRead{mr: mr, key: "session:" + sess.ID})

	updated, err := sm.ReplacePermissions(context.Background(), "1", json.RawMessage(`[{"module":"canAccessPayments","canRead":true}]`))
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
	assert.False(t, mr.Exists("session:"+sess.ID))
	assert.Empty(t, mustMembers(t, mr, "session:user:1"))

	_, ok, err := sm.Lookup(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValuesCommitKeepsRefreshedPermissions(t *testing.T) {
	sm, _ := newTestManager(t)
	ctx := context.Background()
	sess := loginSession(t, sm, access.Actor{ID: "8", Role: access.RoleManager}, json.RawMessage(`[]`))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	stale, err := sm.Load(ctx, req)
	require.NoError(t, err)

	refreshed := json.RawMessage(`[{"module":"canAccessOrders","canRead":true,"canView":true}]`)
	updated, err := sm.ReplacePermissions(ctx, "8", refreshed)
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	_, err = NewCSRFManager("csrfsecret").Rotate(ctx, stale)
	require.NoError(t, err)
	loaded := commitAndReload(t, sm, stale)

	identity, ok := loaded.Identity()
	require.True(t, ok)
	assert.Equal(t, access.RoleManager, identity.Actor.Role)
	assert.JSONEq(t, string(refreshed), string(identity.Permissions))
	assert.NotEmpty(t, loaded.Get(CSRFSessionKey))
}

func TestLookupAndRevoke(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()
	sess := loginSession(t, sm, access.Actor{ID: "12", Role: access.RoleDeliveryAgent}, json.RawMessage(`[{"module":"canAccessMap","canRead":true}]`))

	identity, ok, err := sm.Lookup(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "12", identity.Actor.ID)
	assert.JSONEq(t, `[{"module":"canAccessMap","canRead":true}]`, string(identity.Permissions))

	require.NoError(t, sm.Revoke(ctx, sess.ID))
	_, ok, err = sm.Lookup(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("session:"+sess.ID))
	assert.Empty(t, mustMembers(t, mr, "session:user:12"))

	_, ok, err = sm.Lookup(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionMissingKeyStartsAnonymous(t *testing.T) {
	sm, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "expired"})

	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "expired", sess.ID)
	assert.Empty(t, sess.User())
}

func TestCSRFTokenRoundTrip(t *testing.T) {
	sm, _ := newTestManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	csrf := NewCSRFManager("csrfsecret")

	token, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.NoError(t, csrf.VerifyToken(context.Background(), sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, "nope"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, ""), ErrCSRFTokenMissing)

	again, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)
}

func TestCSRFTokenBoundToIdentity(t *testing.T) {
	sm, _ := newTestManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	csrf := NewCSRFManager("csrfsecret")

	anonymous, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)

	sess.Login(access.Actor{ID: "3", Role: access.RoleSupport}, nil)
	assert.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, anonymous), ErrCSRFTokenMismatch)

	rotated, err := csrf.Rotate(context.Background(), sess)
	require.NoError(t, err)
	assert.NotEqual(t, anonymous, rotated)
	require.NoError(t, csrf.VerifyToken(context.Background(), sess, rotated))

	other := NewCSRFManager("other")
	assert.ErrorIs(t, other.VerifyToken(context.Background(), sess, rotated), ErrCSRFTokenMismatch)
}

func mustMembers(t *testing.T, mr *miniredis.Miniredis, key string) []string {
	t.Helper()
	if !mr.Exists(key) {
		return nil
	}
	members, err := mr.SMembers(key)
	require.NoError(t, err)
	return members
}
