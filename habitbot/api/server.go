// Package api exposes the progress engine over HTTP for clients other than Discord.
package api

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
	"github.com/ellavondegurechaff/habitbot/habitbot/handlers"
	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
	"github.com/ellavondegurechaff/habitbot/habitbot/services"
	"github.com/ellavondegurechaff/habitbot/habitbot/utils"
)

var errRateLimited = utils.ErrRateLimited

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Engine  *progress.Engine
	Habits  *services.HabitService
	Limiter *handlers.RateLimiter
	DB      Pinger
	Secret  []byte
	Version string
	// RequestTimeout bounds every request; defaults to config.RequestTimeout.
	RequestTimeout time.Duration
}

type Server struct {
	app     *fiber.App
	engine  *progress.Engine
	habits  *services.HabitService
	limiter *handlers.RateLimiter
	db      Pinger
	secret  []byte
	version string
	timeout time.Duration
}

func New(opts Options) *Server {
	if opts.Limiter == nil {
		opts.Limiter = handlers.NewRateLimiter(0, time.Minute)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = config.RequestTimeout
	}
	s := &Server{
		engine:  opts.Engine,
		habits:  opts.Habits,
		limiter: opts.Limiter,
		db:      opts.DB,
		secret:  opts.Secret,
		version: opts.Version,
		timeout: opts.RequestTimeout,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "habitbot",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.routes()
	return s
}

// App returns the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) routes() {
	s.app.Use(recover.New(), securityHeaders, s.withTimeout, requestLogger)

	v1 := s.app.Group("/api/v1")
	v1.Get("/healthz", s.health)

	me := v1.Group("", s.authRequired)
	me.Get("/users/me/stats", s.stats)
	me.Get("/users/me/progress", s.dailyProgress)
	me.Get("/users/me/habits", s.listHabits)
	me.Post("/habits/:id/complete", s.complete)
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *Server) withTimeout(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.timeout)
	defer cancel()
	c.SetUserContext(ctx)
	return c.Next()
}

func securityHeaders(c *fiber.Ctx) error {
	c.Set("X-Content-Type-Options", "nosniff")
	c.Set("X-Frame-Options", "DENY")
	c.Set("Referrer-Policy", "no-referrer")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Next()
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status, _ = statusFor(err)
	}
	attrs := []any{
		slog.String("type", "api"),
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Int("status", status),
		slog.Duration("took", time.Since(start)),
	}
	if status >= fiber.StatusInternalServerError {
		slog.Error("Request failed", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Debug("Request served", attrs...)
	}
	return err
}

func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(contextUserKey).(*models.User)
	return user
}

func (s *Server) health(c *fiber.Ctx) error {
	if s.db != nil {
		if err := s.db.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok", "version": s.version})
}

func (s *Server) stats(c *fiber.Ctx) error {
	stats, err := s.engine.GetStats(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (s *Server) dailyProgress(c *fiber.Ctx) error {
	daily, err := s.engine.GetDailyProgress(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"progress":     daily,
		"goal_reached": daily.GoalReached(),
	})
}

type habitView struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	XPReward         int64  `json:"xp_reward"`
	StreakBonus      int64  `json:"streak_bonus"`
	Active           bool   `json:"active"`
	CurrentStreak    int    `json:"current_streak"`
	LongestStreak    int    `json:"longest_streak"`
	TotalCompletions int64  `json:"total_completions"`
	LastCompletedOn  string `json:"last_completed_on,omitempty"`
}

func (s *Server) listHabits(c *fiber.Ctx) error {
	activeOnly := c.Query("all") != "true"
	habits, err := s.habits.ListHabits(c.UserContext(), currentUser(c).ID, activeOnly)
	if err != nil {
		return err
	}
	out := make([]habitView, 0, len(habits))
	for _, h := range habits {
		out = append(out, habitView{
			ID:               h.ID,
			Name:             h.Name,
			Description:      h.Description,
			XPReward:         h.XPReward,
			StreakBonus:      h.StreakBonus,
			Active:           h.Active,
			CurrentStreak:    h.CurrentStreak,
			LongestStreak:    h.LongestStreak,
			TotalCompletions: h.TotalCompletions,
			LastCompletedOn:  h.LastCompletedOn,
		})
	}
	return c.JSON(fiber.Map{"habits": out})
}

// complete requires an Idempotency-Key header. Retrying a request with the
// same key never applies it twice.
func (s *Server) complete(c *fiber.Ctx) error {
	habitID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || habitID <= 0 {
		return &progress.ValidationError{Field: "habit_id", Reason: "must be a positive integer"}
	}
	key := strings.TrimSpace(c.Get(config.IdempotencyHeader))
	if key == "" || len(key) > config.MaxIdempotencyKey {
		return &progress.ValidationError{
			Field:  "idempotency_key",
			Reason: "header " + config.IdempotencyHeader + " must be 1 to " + strconv.Itoa(config.MaxIdempotencyKey) + " characters",
		}
	}

	user := currentUser(c)
	result, err := s.engine.Complete(c.UserContext(), user.ID, habitID, ActionID(user.ID, key))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// ActionID scopes a client idempotency key to the user so keys from different
// users never collide.
func ActionID(userID int64, key string) string {
	return "http:" + strconv.FormatInt(userID, 10) + ":" + key
}

type errorBody struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(err error) (int, errorBody) {
	var (
		ve *progress.ValidationError
		de *progress.DuplicateActionError
		ne *progress.NotFoundError
		fe *fiber.Error
	)
	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, errorBody{Error: "validation", Field: ve.Field, Reason: ve.Reason}
	case errors.As(err, &de):
		return fiber.StatusConflict, errorBody{Error: "duplicate", Reason: de.Reason}
	case errors.As(err, &ne):
		return fiber.StatusNotFound, errorBody{Error: "not_found", Reason: ne.Entity}
	case errors.Is(err, errUnauthorized):
		return fiber.StatusUnauthorized, errorBody{Error: "unauthorized"}
	case errors.Is(err, errRateLimited):
		return fiber.StatusTooManyRequests, errorBody{Error: "rate_limited"}
	case errors.As(err, &fe):
		return fe.Code, errorBody{Error: strings.ToLower(strings.ReplaceAll(fe.Message, " ", "_"))}
	default:
		return fiber.StatusServiceUnavailable, errorBody{Error: "unavailable", Reason: "nothing was recorded; retry with the same key"}
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	status, body := statusFor(err)
	if status == fiber.StatusServiceUnavailable {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(status).JSON(body)
}
