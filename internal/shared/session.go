package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/freshcart/console/internal/access"
)

// Identity is the authenticated slot of a session. The actor and the
// permission payload issued with it are stored and cleared together.
type Identity struct {
	Actor       access.Actor    `json:"actor"`
	Permissions json.RawMessage `json:"permissions,omitempty"`
}

// SessionClaims ties a bearer token to the session it was issued for.
type SessionClaims struct {
	UserID    string
	SessionID string
}

// Hash fields of a session key. Values and identity are written
// independently so a request touching one never rewrites the other.
const (
	fieldValues   = "values"
	fieldIdentity = "identity"
)

const replaceAttempts = 3

// SessionManager orchestrates cookie based sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session holds per-request session data.
type Session struct {
	ID            string
	values        map[string]string
	identity      *Identity
	loadedUser    string
	manager       *SessionManager
	isNew         bool
	valuesDirty   bool
	identityDirty bool
	destroyed     bool
}

type storedSession struct {
	Values   map[string]string
	Identity *Identity
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load loads or creates a new session for request.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	stored, err := sm.read(ctx, cookie.Value)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			sess := sm.newSession()
			sess.ID = cookie.Value
			return sess, nil
		}
		return nil, err
	}

	sess := sm.newSession()
	sess.ID = cookie.Value
	sess.values = stored.Values
	if sess.values == nil {
		sess.values = make(map[string]string)
	}
	sess.identity = stored.Identity
	if stored.Identity != nil {
		sess.loadedUser = stored.Identity.Actor.ID
	}
	sess.isNew = false
	sess.valuesDirty = false
	sess.identityDirty = false
	return sess, nil
}

// Lookup returns the identity stored under session id. The boolean is false
// when the session expired, was destroyed or is anonymous.
func (sm *SessionManager) Lookup(ctx context.Context, id string) (Identity, bool, error) {
	if id == "" {
		return Identity{}, false, nil
	}
	identity, err := sm.readIdentity(ctx, sm.client, id)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Identity{}, false, nil
		}
		return Identity{}, false, err
	}
	if identity == nil {
		return Identity{}, false, nil
	}
	return *identity, true, nil
}

// Revoke deletes session id and drops it from its user index.
func (sm *SessionManager) Revoke(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	identity, err := sm.readIdentity(ctx, sm.client, id)
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	_, err = sm.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sm.redisKey(id))
		if identity != nil && identity.Actor.ID != "" {
			pipe.SRem(ctx, sm.userKey(identity.Actor.ID), id)
		}
		return nil
	})
	return err
}

// Commit persists the session and writes cookie headers as needed. Only the
// dirty parts of the session are written.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		_, err := sm.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, sm.redisKey(sess.ID))
			if sess.loadedUser != "" {
				pipe.SRem(ctx, sm.userKey(sess.loadedUser), sess.ID)
			}
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	if sess.isNew && sess.ID == "" {
		sess.ID = sm.generateSessionID()
	}

	if sess.valuesDirty || sess.identityDirty || sess.isNew {
		var fields []any
		if sess.valuesDirty || sess.isNew {
			data, err := json.Marshal(sess.values)
			if err != nil {
				return err
			}
			fields = append(fields, fieldValues, string(data))
		}
		writeIdentity := sess.identityDirty || sess.isNew
		if writeIdentity && sess.identity != nil {
			data, err := json.Marshal(sess.identity)
			if err != nil {
				return err
			}
			fields = append(fields, fieldIdentity, string(data))
		}
		key := sm.redisKey(sess.ID)
		current := sess.User()
		_, err := sm.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if writeIdentity && sess.identity == nil {
				pipe.HDel(ctx, key, fieldIdentity)
			}
			if len(fields) > 0 {
				pipe.HSet(ctx, key, fields...)
			}
			pipe.Expire(ctx, key, sm.ttl)
			if sess.loadedUser != "" && sess.loadedUser != current {
				pipe.SRem(ctx, sm.userKey(sess.loadedUser), sess.ID)
			}
			if current != "" {
				pipe.SAdd(ctx, sm.userKey(current), sess.ID)
				pipe.Expire(ctx, sm.userKey(current), sm.ttl)
			}
			return nil
		})
		if err != nil {
			return err
		}
		sess.loadedUser = current
		sess.valuesDirty = false
		sess.identityDirty = false
		sess.isNew = false
	}

	if sess.ID != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
			Expires:  time.Now().Add(sm.ttl),
		})
	}
	return nil
}

// Destroy marks the session for deletion and clears its identity. The Redis
// key is removed on the next Commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.Logout()
	sess.destroyed = true
}

// ReplacePermissions rewrites the permission payload of every live session of
// userID and returns how many sessions were updated. Sessions that expired
// or were destroyed are dropped from the user index and never recreated.
func (sm *SessionManager) ReplacePermissions(ctx context.Context, userID string, payload json.RawMessage) (int, error) {
	if userID == "" {
		return 0, nil
	}
	ids, err := sm.client.SMembers(ctx, sm.userKey(userID)).Result()
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, id := range ids {
		ok, err := sm.replaceIdentityPermissions(ctx, id, userID, payload)
		if err != nil {
			return updated, err
		}
		if !ok {
			_ = sm.client.SRem(ctx, sm.userKey(userID), id).Err()
			continue
		}
		updated++
	}
	return updated, nil
}

// replaceIdentityPermissions swaps the payload of session id under WATCH so
// a concurrent delete aborts the write instead of recreating the key.
func (sm *SessionManager) replaceIdentityPermissions(ctx context.Context, id, userID string, payload json.RawMessage) (bool, error) {
	key := sm.redisKey(id)
	for attempt := 0; attempt < replaceAttempts; attempt++ {
		replaced := false
		err := sm.client.Watch(ctx, func(tx *redis.Tx) error {
			identity, err := sm.readIdentity(ctx, tx, id)
			if err != nil {
				return err
			}
			if identity == nil || identity.Actor.ID != userID {
				return nil
			}
			identity.Permissions = cloneRaw(payload)
			data, err := json.Marshal(identity)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, fieldIdentity, string(data))
				return nil
			})
			if err != nil {
				return err
			}
			replaced = true
			return nil
		}, key)
		switch {
		case err == nil:
			return replaced, nil
		case errors.Is(err, redis.Nil):
			return false, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return false, err
		}
	}
	return false, fmt.Errorf("session %s: %w", id, redis.TxFailedErr)
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.valuesDirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	if s.values == nil {
		return ""
	}
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if s.values == nil {
		return
	}
	delete(s.values, key)
	s.valuesDirty = true
}

// Login stores the actor and its permission payload in one assignment.
func (s *Session) Login(actor access.Actor, permissions json.RawMessage) {
	s.identity = &Identity{Actor: actor, Permissions: cloneRaw(permissions)}
	s.identityDirty = true
}

// Logout clears the actor and its permission payload together.
func (s *Session) Logout() {
	if s.identity == nil {
		return
	}
	s.identity = nil
	s.identityDirty = true
}

// Identity returns a copy of the authenticated slot.
func (s *Session) Identity() (Identity, bool) {
	if s == nil || s.identity == nil {
		return Identity{}, false
	}
	return Identity{Actor: s.identity.Actor, Permissions: cloneRaw(s.identity.Permissions)}, true
}

// User returns the current user ID, empty when anonymous.
func (s *Session) User() string {
	if s == nil || s.identity == nil {
		return ""
	}
	return s.identity.Actor.ID
}

func (sm *SessionManager) read(ctx context.Context, id string) (*storedSession, error) {
	fields, err := sm.client.HGetAll(ctx, sm.redisKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, redis.Nil
	}
	var stored storedSession
	if raw, ok := fields[fieldValues]; ok {
		if err := json.Unmarshal([]byte(raw), &stored.Values); err != nil {
			return nil, err
		}
	}
	if raw, ok := fields[fieldIdentity]; ok {
		var identity Identity
		if err := json.Unmarshal([]byte(raw), &identity); err != nil {
			return nil, err
		}
		stored.Identity = &identity
	}
	return &stored, nil
}

// readIdentity returns redis.Nil when the session key is gone and a nil
// identity when the session is anonymous.
func (sm *SessionManager) readIdentity(ctx context.Context, c redis.Cmdable, id string) (*Identity, error) {
	key := sm.redisKey(id)
	raw, err := c.HGet(ctx, key, fieldIdentity).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, err
		}
		exists, err := c.Exists(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		if exists == 0 {
			return nil, redis.Nil
		}
		return nil, nil
	}
	var identity Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:      sm.generateSessionID(),
		values:  make(map[string]string),
		manager: sm,
		isNew:   true,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}

func (sm *SessionManager) userKey(userID string) string {
	return "session:user:" + userID
}

func (sm *SessionManager) generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(sm.secret) > 0 {
		for i := range b {
			b[i] ^= sm.secret[i%len(sm.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

type sessionContextKey struct{}

type bearerSessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// IdentityFromContext returns the authenticated slot of the request session.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	return SessionFromContext(ctx).Identity()
}

// ContextWithBearerSession records the session a verified bearer token is
// bound to.
func ContextWithBearerSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, bearerSessionContextKey{}, sessionID)
}

// BearerSessionFromContext returns the session of the request bearer token.
func BearerSessionFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(bearerSessionContextKey{}).(string)
	return id, ok && id != ""
}
