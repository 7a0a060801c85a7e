// Package auth provides bearer-token authentication backed by Redis and
// role gates for the HTTP API.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/siteproc/siteproc/internal/platform/httpx"
)

// Role names the three actor kinds in the procurement pipeline.
type Role string

const (
	RoleSiteEngineer    Role = "site_engineer"
	RoleManager         Role = "manager"
	RolePurchaseOfficer Role = "purchase_officer"
)

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

type contextKey struct{}

// FromContext returns the authenticated principal, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// WithPrincipal attaches a principal to the context; used by tests.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

var errNoToken = errors.New("auth: missing bearer token")

// Manager resolves bearer tokens against Redis.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewManager constructs a token manager.
func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	return &Manager{client: client, ttl: ttl}
}

func tokenKey(token string) string {
	return "siteproc:token:" + token
}

// Issue stores a token for the principal with the configured TTL.
func (m *Manager) Issue(ctx context.Context, token string, p Principal) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, tokenKey(token), payload, m.ttl).Err()
}

// Revoke deletes a token.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	return m.client.Del(ctx, tokenKey(token)).Err()
}

// Resolve looks up the principal behind a token.
func (m *Manager) Resolve(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, errNoToken
	}
	payload, err := m.client.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Principal{}, errNoToken
		}
		return Principal{}, err
	}
	var p Principal
	if err := json.Unmarshal(payload, &p); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// Authenticate resolves the Authorization header and attaches the principal.
// Requests without a valid token get 401.
func (m *Manager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
			return
		}
		p, err := m.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, errNoToken) {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
				return
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireRole gates a route group to the listed roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
				return
			}
			if !allowed[p.Role] {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
