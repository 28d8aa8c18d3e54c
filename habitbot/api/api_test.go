package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellavondegurechaff/habitbot/habitbot/database/dbtest"
	"github.com/ellavondegurechaff/habitbot/habitbot/handlers"
	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
	"github.com/ellavondegurechaff/habitbot/habitbot/services"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T, limit int) *Server {
	t.Helper()
	db := dbtest.New(t)
	repos := progress.NewRepositories(db.BunDB())
	engine := progress.NewEngine(db.BunDB(), repos, progress.Options{
		Badges:   progress.NewBadgeEvaluator(nil),
		BonusCap: 20,
	})
	seeds := []services.HabitSeed{
		{Name: "Reading", XPReward: 12, StreakBonus: 4},
		{Name: "Exercise", XPReward: 15, StreakBonus: 5},
	}
	return New(Options{
		Engine:  engine,
		Habits:  services.NewHabitService(repos.Users, repos.Habits, nil, seeds, 2),
		Limiter: handlers.NewRateLimiter(limit, time.Minute),
		DB:      db,
		Secret:  testSecret,
		Version: "test",
	})
}

func token(t *testing.T, discordID string) string {
	t.Helper()
	tok, err := IssueToken(testSecret, discordID, "sam", time.Hour)
	require.NoError(t, err)
	return tok
}

type call struct {
	method, path, token, key string
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, 0)
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func do(t *testing.T, s *Server, c call) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(c.method, c.path, nil)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.key != "" {
		req.Header.Set("Idempotency-Key", c.key)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func firstHabitID(t *testing.T, s *Server, tok string) int64 {
	t.Helper()
	status, body := do(t, s, call{method: http.MethodGet, path: "/api/v1/users/me/habits", token: tok})
	require.Equal(t, http.StatusOK, status)
	habits := body["habits"].([]any)
	require.NotEmpty(t, habits)
	return int64(habits[0].(map[string]any)["id"].(float64))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	status, body := do(t, s, call{method: http.MethodGet, path: "/api/v1/healthz"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, 0)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, authClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	expiredTok, err := expired.SignedString(testSecret)
	require.NoError(t, err)

	otherKey, err := IssueToken([]byte("other"), "1", "sam", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: otherKey},
		{name: "expired", token: expiredTok},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, s, call{method: http.MethodGet, path: "/api/v1/users/me/stats", token: tt.token})
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "unauthorized", body["error"])
		})
	}
}

func TestListHabitsRegistersUser(t *testing.T) {
	s := newTestServer(t, 0)
	status, body := do(t, s, call{method: http.MethodGet, path: "/api/v1/users/me/habits", token: token(t, "100")})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["habits"], 2)
}

func TestComplete(t *testing.T) {
	s := newTestServer(t, 0)
	tok := token(t, "100")
	habitID := firstHabitID(t, s, tok)
	path := fmt.Sprintf("/api/v1/habits/%d/complete", habitID)

	status, body := do(t, s, call{method: http.MethodPost, path: path, token: tok})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "idempotency_key", body["field"])

	status, body = do(t, s, call{method: http.MethodPost, path: path, token: tok, key: "k-1"})
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 12, body["xp_earned"])
	assert.EqualValues(t, 12, body["total_xp"])
	assert.EqualValues(t, 1, body["current_streak"])

	status, body = do(t, s, call{method: http.MethodPost, path: path, token: tok, key: "k-1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, progress.ReasonReplayedAction, body["reason"])

	status, body = do(t, s, call{method: http.MethodPost, path: path, token: tok, key: "k-2"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, progress.ReasonAlreadyCompletedToday, body["reason"])

	status, body = do(t, s, call{method: http.MethodGet, path: "/api/v1/users/me/stats", token: tok})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 12, body["total_xp"])
	assert.EqualValues(t, 1, body["total_completions"])

	status, body = do(t, s, call{method: http.MethodGet, path: "/api/v1/users/me/progress", token: tok})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["goal_reached"])
	assert.EqualValues(t, 1, body["progress"].(map[string]any)["completed"])
}

func TestComplete_SameKeyDifferentUsers(t *testing.T) {
	s := newTestServer(t, 0)
	a, b := token(t, "100"), token(t, "200")

	status, _ := do(t, s, call{method: http.MethodPost, path: fmt.Sprintf("/api/v1/habits/%d/complete", firstHabitID(t, s, a)), token: a, key: "shared"})
	assert.Equal(t, http.StatusCreated, status)
	status, _ = do(t, s, call{method: http.MethodPost, path: fmt.Sprintf("/api/v1/habits/%d/complete", firstHabitID(t, s, b)), token: b, key: "shared"})
	assert.Equal(t, http.StatusCreated, status)
}

func TestComplete_ForeignAndMalformedHabit(t *testing.T) {
	s := newTestServer(t, 0)
	owner, other := token(t, "100"), token(t, "200")
	habitID := firstHabitID(t, s, owner)

	status, body := do(t, s, call{method: http.MethodPost, path: fmt.Sprintf("/api/v1/habits/%d/complete", habitID), token: other, key: "k"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"])

	status, _ = do(t, s, call{method: http.MethodPost, path: "/api/v1/habits/abc/complete", token: owner, key: "k"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRateLimited(t *testing.T) {
	s := newTestServer(t, 2)
	tok := token(t, "100")
	for i := 0; i < 2; i++ {
		status, _ := do(t, s, call{method: http.MethodGet, path: "/api/v1/users/me/stats", token: tok})
		require.Equal(t, http.StatusOK, status)
	}
	status, body := do(t, s, call{method: http.MethodGet, path: "/api/v1/users/me/stats", token: tok})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", body["error"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: &progress.ValidationError{Field: "name"}, want: fiber.StatusBadRequest},
		{name: "duplicate", err: &progress.DuplicateActionError{Reason: progress.ReasonReplayedAction}, want: fiber.StatusConflict},
		{name: "not found", err: &progress.NotFoundError{Entity: "habit"}, want: fiber.StatusNotFound},
		{name: "infrastructure", err: &progress.InfrastructureError{Op: "commit", Err: errors.New("disk full")}, want: fiber.StatusServiceUnavailable},
		{name: "timeout", err: context.DeadlineExceeded, want: fiber.StatusServiceUnavailable},
		{name: "fiber", err: fiber.ErrMethodNotAllowed, want: fiber.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, body := statusFor(tt.err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, body.Reason, "disk full")
		})
	}
}

func TestActionID(t *testing.T) {
	assert.Equal(t, "http:7:abc", ActionID(7, "abc"))
}
