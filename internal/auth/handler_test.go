package auth_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/siakad-core/siakad-core/internal/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type handlerFixture struct {
	server  *httptest.Server
	repo    *memoryAuthRepo
	clock   *fakeClock
	service *auth.Service
}

func newHandlerFixture(t *testing.T, throttle *auth.Throttle) *handlerFixture {
	t.Helper()
	repo := newMemoryAuthRepo()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	codec := newTestCodec(clock)
	logger := testLogger()
	service := auth.NewService(repo, codec, logger, clock.Now)
	handler := auth.NewHandler(logger, service, throttle, 720*time.Hour, false)
	mw := auth.Middleware{Service: service, Logger: logger}

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		handler.MountRoutes(r, mw)
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &handlerFixture{server: server, repo: repo, clock: clock, service: service}
}

func (f *handlerFixture) post(t *testing.T, path, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeTokens(t *testing.T, resp *http.Response) (access, refresh string) {
	t.Helper()
	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.AccessToken, body.RefreshToken
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginSetsRefreshCookie(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	seedUser(fx.repo, 1, "a@test.com", hashPassword(t, "password123"), true)

	resp := fx.post(t, "/auth/login", `{"email":"a@test.com","password":"password123"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	access, refresh := decodeTokens(t, resp)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	cookie := findCookie(resp, "refresh_token")
	require.NotNil(t, cookie)
	require.Equal(t, refresh, cookie.Value)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, "/", cookie.Path)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Positive(t, cookie.MaxAge)
}

func TestLoginRejections(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	seedUser(fx.repo, 1, "a@test.com", hashPassword(t, "password123"), true)
	seedUser(fx.repo, 2, "off@test.com", hashPassword(t, "password123"), false)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"email":"a@test.com","password":"nope"}`, http.StatusUnauthorized},
		{"unknown email", `{"email":"ghost@test.com","password":"password123"}`, http.StatusUnauthorized},
		{"disabled account", `{"email":"off@test.com","password":"password123"}`, http.StatusForbidden},
		{"missing password", `{"email":"a@test.com"}`, http.StatusBadRequest},
		{"not json", `email=a@test.com`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := fx.post(t, "/auth/login", tc.body, nil)
			require.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestRefreshFromBodyAndCookie(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	seedUser(fx.repo, 1, "a@test.com", hashPassword(t, "password123"), true)

	login := fx.post(t, "/auth/login", `{"email":"a@test.com","password":"password123"}`, nil)
	require.Equal(t, http.StatusOK, login.StatusCode)
	_, refresh := decodeTokens(t, login)

	body := fmt.Sprintf(`{"refresh_token":%q}`, refresh)
	resp := fx.post(t, "/auth/refresh", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	header := http.Header{}
	header.Set("Cookie", "refresh_token="+refresh)
	resp = fx.post(t, "/auth/refresh", `{}`, header)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRefreshWithoutToken(t *testing.T) {
	fx := newHandlerFixture(t, nil)

	resp := fx.post(t, "/auth/refresh", `{}`, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutClearsCookieEvenWhenSessionGone(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	seedUser(fx.repo, 1, "a@test.com", hashPassword(t, "password123"), true)

	login := fx.post(t, "/auth/login", `{"email":"a@test.com","password":"password123"}`, nil)
	_, refresh := decodeTokens(t, login)

	for id := range fx.repo.sessions {
		delete(fx.repo.sessions, id)
	}

	body := fmt.Sprintf(`{"refresh_token":%q}`, refresh)
	resp := fx.post(t, "/auth/logout", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookie := findCookie(resp, "refresh_token")
	require.NotNil(t, cookie)
	require.Empty(t, cookie.Value)
	require.Negative(t, cookie.MaxAge)
}

func TestLogoutWithoutToken(t *testing.T) {
	fx := newHandlerFixture(t, nil)

	resp := fx.post(t, "/auth/logout", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogoutAllRequiresAccessToken(t *testing.T) {
	fx := newHandlerFixture(t, nil)

	resp := fx.post(t, "/auth/logout/all", `{}`, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutAllEndsEverySession(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	seedUser(fx.repo, 1, "a@test.com", hashPassword(t, "password123"), true)

	first := fx.post(t, "/auth/login", `{"email":"a@test.com","password":"password123"}`, nil)
	firstAccess, firstRefresh := decodeTokens(t, first)
	second := fx.post(t, "/auth/login", `{"email":"a@test.com","password":"password123"}`, nil)
	_, secondRefresh := decodeTokens(t, second)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+firstAccess)
	body := fmt.Sprintf(`{"refresh_token":%q}`, firstRefresh)
	resp := fx.post(t, "/auth/logout/all", body, header)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.post(t, "/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, firstRefresh), nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = fx.post(t, "/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, secondRefresh), nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The access token used for the call itself is now stale too.
	resp = fx.post(t, "/auth/logout/all", body, header)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginThrottleBlocksAfterLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	throttle := auth.NewThrottle(client, 3, 10*time.Minute, testLogger())

	fx := newHandlerFixture(t, throttle)
	seedUser(fx.repo, 1, "a@test.com", hashPassword(t, "password123"), true)

	for i := 0; i < 3; i++ {
		resp := fx.post(t, "/auth/login", `{"email":"a@test.com","password":"nope"}`, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	// Fourth attempt is blocked before password verification.
	resp := fx.post(t, "/auth/login", `{"email":"a@test.com","password":"password123"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// The window expiring unblocks the account.
	mr.FastForward(11 * time.Minute)
	resp = fx.post(t, "/auth/login", `{"email":"a@test.com","password":"password123"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginThrottleResetOnSuccess(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	throttle := auth.NewThrottle(client, 3, 10*time.Minute, testLogger())

	fx := newHandlerFixture(t, throttle)
	seedUser(fx.repo, 1, "a@test.com", hashPassword(t, "password123"), true)

	for i := 0; i < 2; i++ {
		resp := fx.post(t, "/auth/login", `{"email":"a@test.com","password":"nope"}`, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := fx.post(t, "/auth/login", `{"email":"a@test.com","password":"password123"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Counter was cleared, so the budget is fresh again.
	for i := 0; i < 3; i++ {
		resp := fx.post(t, "/auth/login", `{"email":"a@test.com","password":"nope"}`, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp = fx.post(t, "/auth/login", `{"email":"a@test.com","password":"nope"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestThrottleFailsOpenWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	throttle := auth.NewThrottle(client, 1, 10*time.Minute, testLogger())

	fx := newHandlerFixture(t, throttle)
	seedUser(fx.repo, 1, "a@test.com", hashPassword(t, "password123"), true)

	mr.Close()

	resp := fx.post(t, "/auth/login", `{"email":"a@test.com","password":"password123"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
