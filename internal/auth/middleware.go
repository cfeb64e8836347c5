package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/utils"

	"github.com/coreos/go-oidc/v3/oidc"
)

type contextKey string

const (
	userIDKey  contextKey = "user_id"
	roleKey    contextKey = "role"
	serviceKey contextKey = "service"
)

// Authenticator accepts a bearer token (HS256 or, when an issuer is
// configured, OIDC) or the server-to-server service key.
type Authenticator struct {
	jwtSecret  []byte
	serviceKey string
	adminRole  string
	oidc       *oidc.IDTokenVerifier
	cache      *RedisTokenCache // optional
	logger     *logger.Logger
}

// NewAuthenticator discovers the OIDC provider when cfg.OIDCIssuer is set.
func NewAuthenticator(ctx context.Context, cfg config.AuthConfig, serviceKey string, cache *RedisTokenCache, log *logger.Logger) (*Authenticator, error) {
	a := &Authenticator{
		jwtSecret:  []byte(cfg.JWTSecret),
		serviceKey: serviceKey,
		adminRole:  cfg.AdminRole,
		cache:      cache,
		logger:     log,
	}

	if cfg.OIDCIssuer != "" {
		provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
		}
		// SkipClientIDCheck → tokens for any client of the realm are accepted
		a.oidc = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	}
	if a.adminRole == "" {
		a.adminRole = "admin"
	}
	return a, nil
}

func (a *Authenticator) isServiceKey(r *http.Request) bool {
	if a.serviceKey == "" {
		return false
	}
	for _, key := range []string{r.Header.Get("apikey"), r.Header.Get("X-Service-Key")} {
		if key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(a.serviceKey)) == 1 {
			return true
		}
	}
	return false
}

// identityFromToken resolves who a bearer token belongs to.
func (a *Authenticator) identityFromToken(ctx context.Context, rawToken string) (*Identity, error) {
	if a.cache != nil {
		if id, err := a.cache.GetIdentity(ctx, rawToken); err == nil && id != nil {
			return id, nil
		}
	}

	var (
		id        Identity
		expiresAt time.Time
	)
	if a.oidc != nil {
		idToken, err := a.oidc.Verify(ctx, rawToken)
		if err != nil {
			return nil, fmt.Errorf("invalid token: %w", err)
		}
		var claims struct {
			Role string `json:"role"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("invalid token claims: %w", err)
		}
		id = Identity{UserID: idToken.Subject, Role: claims.Role}
		expiresAt = idToken.Expiry
	} else {
		claims, err := ParseHS256(rawToken, a.jwtSecret)
		if err != nil {
			return nil, err
		}
		id = Identity{UserID: claims.Subject, Role: claims.Role}
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
	}
	if id.UserID == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	if a.cache != nil {
		if err := a.cache.SetIdentity(ctx, rawToken, id, expiresAt); err != nil {
			a.logger.Warn("AUTH", fmt.Sprintf("Failed to cache token: %v", err))
		}
	}
	return &id, nil
}

// Middleware rejects requests without valid credentials with
// 401 {"error":"Unauthorized"}.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.isServiceKey(r) {
			ctx := context.WithValue(r.Context(), serviceKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		rawToken, err := ExtractTokenFromRequest(r)
		if err != nil {
			a.logger.LogSecurity("AUTH_MISSING", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		id, err := a.identityFromToken(r.Context(), rawToken)
		if err != nil {
			a.logger.LogSecurity("AUTH_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, id.UserID)
		ctx = context.WithValue(ctx, roleKey, id.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin admits service-key calls and tokens carrying the admin role.
// It must run after Middleware; other callers get 403 {"error":"Forbidden"}.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if isService(ctx) || (UserID(ctx) != "" && Role(ctx) == a.adminRole) {
			next.ServeHTTP(w, r)
			return
		}
		a.logger.LogSecurity("ADMIN_DENIED", fmt.Sprintf("%s %s: user=%q role=%q", r.Method, r.URL.Path, UserID(ctx), Role(ctx)))
		_ = utils.WriteError(w, http.StatusForbidden, "Forbidden")
	})
}

// UserID returns the authenticated user, "" for service calls.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

// Role returns the role claim of the authenticated user.
func Role(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

func isService(ctx context.Context) bool {
	v, _ := ctx.Value(serviceKey).(bool)
	return v
}

// WithUserID is used by tests and internal callers that already know the user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
