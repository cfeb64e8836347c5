package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, secret, sub string, exp time.Time) string {
	t.Helper()
	return signTokenWithRole(t, secret, sub, "authenticated", exp)
}

func signTokenWithRole(t *testing.T, secret, sub, role string, exp time.Time) string {
	t.Helper()
	claims := UserClaims{
		Email: "asha@example.com",
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newTestAuthenticator(t *testing.T, cache *RedisTokenCache) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(context.Background(), config.AuthConfig{JWTSecret: testSecret}, "service-key", cache, logger.NewNop())
	require.NoError(t, err)
	return a
}

// echo writes the user the middleware put in the context.
func echo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isService(r.Context()) {
			w.Write([]byte("service"))
			return
		}
		w.Write([]byte(UserID(r.Context())))
	})
}

func serve(a *Authenticator, setup func(r *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/send-push-notification", nil)
	setup(req)
	rr := httptest.NewRecorder()
	a.Middleware(echo()).ServeHTTP(rr, req)
	return rr
}

func TestMiddlewareAcceptsValidJWT(t *testing.T) {
	a := newTestAuthenticator(t, nil)
	token := signToken(t, testSecret, "user-42", time.Now().Add(time.Hour))

	rr := serve(a, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user-42", rr.Body.String())
}

func TestMiddlewareAcceptsServiceKey(t *testing.T) {
	a := newTestAuthenticator(t, nil)

	for _, header := range []string{"apikey", "X-Service-Key"} {
		rr := serve(a, func(r *http.Request) { r.Header.Set(header, "service-key") })
		assert.Equal(t, http.StatusOK, rr.Code, header)
		assert.Equal(t, "service", rr.Body.String(), header)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	a := newTestAuthenticator(t, nil)

	cases := map[string]func(r *http.Request){
		"no credentials":  func(r *http.Request) {},
		"wrong scheme":    func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
		"wrong secret":    func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "u", time.Now().Add(time.Hour))) },
		"expired":         func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "u", time.Now().Add(-time.Minute))) },
		"no subject":      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "", time.Now().Add(time.Hour))) },
		"bad service key": func(r *http.Request) { r.Header.Set("apikey", "nope") },
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			rr := serve(a, setup)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())
		})
	}
}

func TestMiddlewareWithoutServiceKeyConfigured(t *testing.T) {
	a, err := NewAuthenticator(context.Background(), config.AuthConfig{JWTSecret: testSecret}, "", nil, logger.NewNop())
	require.NoError(t, err)

	rr := serve(a, func(r *http.Request) { r.Header.Set("apikey", "") })
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddlewareCachesVerifiedTokens(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewRedisTokenCache(client)

	a := newTestAuthenticator(t, cache)
	token := signToken(t, testSecret, "user-7", time.Now().Add(time.Hour))

	rr := serve(a, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })
	require.Equal(t, http.StatusOK, rr.Code)

	id, err := cache.GetIdentity(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, Identity{UserID: "user-7", Role: "authenticated"}, *id)
	assert.Equal(t, MaxTokenCacheTTL, mr.TTL(tokenKey(token)))
}

func TestTokenCacheSkipsExpired(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewRedisTokenCache(client)

	require.NoError(t, cache.SetIdentity(context.Background(), "tok", Identity{UserID: "user-1"}, time.Now().Add(-time.Second)))
	id, err := cache.GetIdentity(context.Background(), "tok")
	require.NoError(t, err)
	assert.Nil(t, id)
}

func serveAdmin(a *Authenticator, setup func(r *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/api/admin/gold-rates/22K", nil)
	setup(req)
	rr := httptest.NewRecorder()
	a.Middleware(a.RequireAdmin(echo())).ServeHTTP(rr, req)
	return rr
}

func TestRequireAdmin(t *testing.T) {
	a := newTestAuthenticator(t, nil)
	exp := time.Now().Add(time.Hour)

	rr := serveAdmin(a, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signTokenWithRole(t, testSecret, "owner-1", "admin", exp))
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "owner-1", rr.Body.String())

	rr = serveAdmin(a, func(r *http.Request) { r.Header.Set("X-Service-Key", "service-key") })
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "service", rr.Body.String())

	for _, role := range []string{"authenticated", ""} {
		rr = serveAdmin(a, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signTokenWithRole(t, testSecret, "customer-1", role, exp))
		})
		assert.Equal(t, http.StatusForbidden, rr.Code, "role %q", role)
		assert.JSONEq(t, `{"error":"Forbidden"}`, rr.Body.String())
	}
}

func TestRequireAdminUsesCachedRole(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	a := newTestAuthenticator(t, NewRedisTokenCache(client))
	token := signTokenWithRole(t, testSecret, "customer-1", "authenticated", time.Now().Add(time.Hour))
	setup := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }

	// the second request is answered from the cache and must keep the role
	assert.Equal(t, http.StatusForbidden, serveAdmin(a, setup).Code)
	assert.Equal(t, http.StatusForbidden, serveAdmin(a, setup).Code)
}

func TestAdminRoleIsConfigurable(t *testing.T) {
	a, err := NewAuthenticator(context.Background(), config.AuthConfig{JWTSecret: testSecret, AdminRole: "store_owner"}, "", nil, logger.NewNop())
	require.NoError(t, err)
	exp := time.Now().Add(time.Hour)

	rr := serveAdmin(a, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signTokenWithRole(t, testSecret, "u", "admin", exp))
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = serveAdmin(a, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signTokenWithRole(t, testSecret, "u", "store_owner", exp))
	})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestExtractTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc.def.ghi")
	token, err := ExtractTokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	req.Header.Set("Authorization", "Bearer ")
	_, err = ExtractTokenFromRequest(req)
	assert.Error(t, err)
}
