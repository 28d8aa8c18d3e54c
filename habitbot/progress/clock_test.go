package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClosedDay(t *testing.T) {
	lateEvening := 23*time.Hour + 59*time.Minute
	tests := []struct {
		name    string
		now     time.Time
		resetAt time.Duration
		want    string
	}{
		{name: "evening reset on time", now: time.Date(2024, 5, 10, 23, 59, 0, 0, time.UTC), resetAt: lateEvening, want: "2024-05-10"},
		{name: "evening reset run late next morning", now: time.Date(2024, 5, 11, 10, 0, 0, 0, time.UTC), resetAt: lateEvening, want: "2024-05-10"},
		{name: "evening reset run early", now: time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC), resetAt: lateEvening, want: "2024-05-09"},
		{name: "midnight", now: time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), resetAt: 0, want: "2024-05-10"},
		{name: "after midnight on time", now: time.Date(2024, 5, 11, 0, 5, 0, 0, time.UTC), resetAt: 5 * time.Minute, want: "2024-05-10"},
		{name: "after midnight run early", now: time.Date(2024, 5, 11, 0, 3, 0, 0, time.UTC), resetAt: 5 * time.Minute, want: "2024-05-09"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClosedDay(tt.now, time.UTC, tt.resetAt))
		})
	}
}

func TestClosedDay_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	now := time.Date(2024, 5, 10, 14, 59, 0, 0, time.UTC)
	assert.Equal(t, "2024-05-10", ClosedDay(now, loc, 23*time.Hour+59*time.Minute))
}
