package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler_FormatsTypeAndStatus(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandlerWithOptions(Options{Output: &buf, NoColor: true, Level: slog.LevelInfo}))

	log.Info("Habit completed",
		slog.String("type", "progress"),
		slog.String("status", "success"),
		slog.Int("xp", 22),
	)

	out := buf.String()
	assert.Contains(t, out, "[HabitBot]")
	assert.Contains(t, out, "[INFO] [XP] Habit completed")
	assert.Contains(t, out, "[Status: success]")
	assert.Contains(t, out, "xp=22")
	assert.NotContains(t, out, "type=")
}

func TestHandler_SkipsGatewayNoiseAndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandlerWithOptions(Options{Output: &buf, NoColor: true, Level: slog.LevelInfo}))

	log.Info("sending heartbeat")
	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.With(slog.String("type", "db")).Warn("slow query")
	assert.Contains(t, buf.String(), "[WARN] [DB] slow query")
}

func TestHandler_ErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandlerWithOptions(Options{Output: &buf, NoColor: true}))

	log.Error("Transaction failed", slog.String("type", "error"), slog.String("error", "boom"))
	assert.Contains(t, buf.String(), "[ERROR] [ERR] Transaction failed: boom")
}
