package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellavondegurechaff/habitbot/habitbot/utils"
)

func invocation(user string) *Invocation {
	return &Invocation{Ctx: context.Background(), Name: "habits", Kind: "cmd", UserID: user, UserName: user}
}

func TestChain_Order(t *testing.T) {
	var trace []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(inv *Invocation) error {
				trace = append(trace, name+">")
				err := next(inv)
				trace = append(trace, "<"+name)
				return err
			}
		}
	}

	h := Chain(func(*Invocation) error {
		trace = append(trace, "handler")
		return nil
	}, mw("a"), mw("b"))

	require.NoError(t, h(invocation("1")))
	assert.Equal(t, "a> b> handler <b <a", strings.Join(trace, " "))
}

func TestRecover(t *testing.T) {
	h := Chain(func(*Invocation) error { panic("nil map") }, Recover())
	err := h(invocation("1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil map")
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	h := Chain(func(*Invocation) error { return nil }, RateLimit(limiter))

	assert.NoError(t, h(invocation("1")))
	assert.NoError(t, h(invocation("1")))
	assert.ErrorIs(t, h(invocation("1")), utils.ErrRateLimited)
	assert.NoError(t, h(invocation("2")), "limits are per user")

	now = now.Add(61 * time.Second)
	assert.NoError(t, h(invocation("1")))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, limiter.Sweep())
}

func TestTimeout(t *testing.T) {
	var sawDeadline bool
	fast := Chain(func(inv *Invocation) error {
		_, sawDeadline = inv.Ctx.Deadline()
		return nil
	}, Timeout(time.Second))
	require.NoError(t, fast(invocation("1")))
	assert.True(t, sawDeadline)

	release := make(chan struct{})
	defer close(release)
	slow := Chain(func(inv *Invocation) error {
		<-release
		return nil
	}, Timeout(10*time.Millisecond))
	assert.ErrorIs(t, slow(invocation("1")), ErrTimeout)
}

func TestLoggingPassesErrorThrough(t *testing.T) {
	boom := errors.New("boom")
	h := Chain(func(*Invocation) error { return boom }, Logging(time.Second))
	assert.ErrorIs(t, h(invocation("1")), boom)
}
