package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/disgoorg/disgo/handler"

	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
	"github.com/ellavondegurechaff/habitbot/habitbot/utils"
)

// Invocation is one command or component interaction as seen by the chain.
type Invocation struct {
	Ctx      context.Context
	Name     string
	Kind     string // "cmd" or "component"
	UserID   string
	UserName string
}

type Handler func(inv *Invocation) error

type Middleware func(next Handler) Handler

// Chain wraps h so that the first middleware is the outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// ErrTimeout is returned when a handler does not finish within its budget.
var ErrTimeout = errors.New("interaction timed out")

// Recover turns a panic into an error so one interaction cannot take the bot down.
func Recover() Middleware {
	return func(next Handler) Handler {
		return func(inv *Invocation) (err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Interaction panic",
						slog.String("type", inv.Kind),
						slog.String("name", inv.Name),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())))
					err = fmt.Errorf("panic in %s: %v", inv.Name, r)
				}
			}()
			return next(inv)
		}
	}
}

// Logging records every interaction with its outcome and duration.
func Logging(slowThreshold time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(inv *Invocation) error {
			start := time.Now()
			err := next(inv)
			duration := time.Since(start)

			attrs := []any{
				slog.String("type", inv.Kind),
				slog.String("name", inv.Name),
				slog.String("user_id", inv.UserID),
				slog.String("user_name", inv.UserName),
				slog.Duration("took", duration),
			}
			switch {
			case err == nil && duration > slowThreshold:
				slog.Warn("Interaction executed slowly", append(attrs, slog.String("status", "slow"))...)
			case err == nil:
				slog.Info("Interaction completed", append(attrs, slog.String("status", "success"))...)
			case progress.IsDuplicate(err):
				slog.Info("Interaction duplicate", append(attrs, slog.String("status", "duplicate"))...)
			case progress.IsValidation(err), progress.IsNotFound(err), errors.Is(err, utils.ErrRateLimited):
				slog.Warn("Interaction rejected", append(attrs, slog.Any("error", err), slog.String("status", "rejected"))...)
			default:
				slog.Error("Interaction failed", append(attrs, slog.Any("error", err), slog.String("status", "failed"))...)
			}
			return err
		}
	}
}

// RateLimit rejects users over the limiter's budget with utils.ErrRateLimited.
func RateLimit(limiter *RateLimiter) Middleware {
	return func(next Handler) Handler {
		return func(inv *Invocation) error {
			if !limiter.Allow(inv.UserID) {
				return utils.ErrRateLimited
			}
			return next(inv)
		}
	}
}

// Timeout gives the handler a context with deadline d and stops waiting for
// it after d. The handler keeps its context, so the storage layer rolls back
// whatever it had in flight.
func Timeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(inv *Invocation) error {
			ctx, cancel := context.WithTimeout(inv.Ctx, d)
			defer cancel()
			inv.Ctx = ctx

			done := make(chan error, 1)
			go func() {
				done <- next(inv)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return fmt.Errorf("%w after %s", ErrTimeout, d)
			}
		}
	}
}

// Stack adapts the chain to disgo command and component handlers.
type Stack struct {
	limiter *RateLimiter
	mws     []Middleware
}

// NewStack returns the standard chain: recover, logging, rate limit, timeout.
func NewStack(limiter *RateLimiter, timeout time.Duration) *Stack {
	if timeout <= 0 {
		timeout = config.CommandExecutionTimeout
	}
	return &Stack{limiter: limiter, mws: []Middleware{
		Recover(),
		Logging(config.SlowCommandThreshold),
		RateLimit(limiter),
		Timeout(timeout),
	}}
}

// WithTimeout returns a stack sharing the same limiter with a different budget.
func (s *Stack) WithTimeout(d time.Duration) *Stack {
	return NewStack(s.limiter, d)
}

type CommandFunc func(ctx context.Context, e *handler.CommandEvent) error

type ComponentFunc func(ctx context.Context, e *handler.ComponentEvent) error

// Command wraps h. An error returned by h means it has not responded yet;
// the stack replies with the classified error.
func (s *Stack) Command(name string, h CommandFunc) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		inv := &Invocation{
			Ctx:      context.Background(),
			Name:     name,
			Kind:     "cmd",
			UserID:   e.User().ID.String(),
			UserName: e.User().Username,
		}
		err := Chain(func(inv *Invocation) error { return h(inv.Ctx, e) }, s.mws...)(inv)
		if err == nil {
			return nil
		}
		return respondError(e, err)
	}
}

func (s *Stack) Component(name string, h ComponentFunc) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		inv := &Invocation{
			Ctx:      context.Background(),
			Name:     name,
			Kind:     "component",
			UserID:   e.User().ID.String(),
			UserName: e.User().Username,
		}
		err := Chain(func(inv *Invocation) error { return h(inv.Ctx, e) }, s.mws...)(inv)
		if err == nil {
			return nil
		}
		return respondError(e, err)
	}
}

func respondError(event interface{}, err error) error {
	if rerr := utils.EH.HandleError(event, err); rerr != nil {
		slog.Debug("Could not send error response",
			slog.String("type", "sys"),
			slog.Any("error", rerr))
	}
	return nil
}
