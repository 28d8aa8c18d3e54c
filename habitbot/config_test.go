package habitbot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellavondegurechaff/habitbot/habitbot/database"
	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[bot]
token = "abc"

[db]
driver = "sqlite"
path = "test.db"

[progress]
timezone = "America/Sao_Paulo"
streak_gap_policy = "continue"
bonus_cap = 30
tx_timeout = "2s"

[cache]
ttl = "30s"

[[badges]]
code = "first"
name = "First"
icon = "🎯"
metric = "total_completions"
threshold = 1
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Bot.Token)
	assert.Equal(t, database.DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, 2*time.Second, cfg.Progress.TxTimeout.Duration)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL.Duration)
	assert.Len(t, cfg.Badges, 1)
	assert.Len(t, cfg.DefaultHabits, 4, "defaults survive when the file has none")
	assert.Equal(t, "America/Sao_Paulo", cfg.Location().String())

	opts := cfg.ProgressOptions()
	assert.Equal(t, progress.GapContinue, opts.Streaks.Policy)
	assert.EqualValues(t, 30, opts.BonusCap)
	assert.Equal(t, "America/Sao_Paulo", opts.Clock.Location().String())
	assert.Equal(t, 23*time.Hour+59*time.Minute, opts.StreakResetAt)
}

func TestReadConfig_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := ReadConfig(DefaultConfigPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Progress, cfg.Progress)

	_, err = ReadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	env := map[string]string{
		"HABITBOT_TOKEN":     "from-env",
		"HABITBOT_DB_DRIVER": "sqlite",
		"HABITBOT_REDIS_URL": "redis://localhost:6379/0",
		"HABITBOT_DB_HOST":   "",
	}
	cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, "from-env", cfg.Bot.Token)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "localhost", cfg.DB.Host, "empty values are ignored")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Bot.Token = "abc"
		return cfg
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults with token", mutate: func(*Config) {}},
		{name: "bot without token", mutate: func(c *Config) { c.Bot.Token = "" }, wantErr: "bot.token"},
		{name: "bot disabled without token", mutate: func(c *Config) { c.Bot.Token = ""; c.Bot.Enabled = false }},
		{name: "unknown driver", mutate: func(c *Config) { c.DB.Driver = "mysql" }, wantErr: "db.driver"},
		{name: "bad timezone", mutate: func(c *Config) { c.Progress.Timezone = "Mars/Olympus" }, wantErr: "progress.timezone"},
		{name: "flat curve", mutate: func(c *Config) { c.Progress.LevelGrowth = 0.5 }, wantErr: "level curve"},
		{name: "negative bonus cap", mutate: func(c *Config) { c.Progress.BonusCap = -1 }, wantErr: "bonus_cap"},
		{name: "unknown gap policy", mutate: func(c *Config) { c.Progress.StreakGapPolicy = "forgive" }, wantErr: "forgive"},
		{name: "redis without url", mutate: func(c *Config) { c.Cache.Backend = "redis" }, wantErr: "redis.url"},
		{name: "bad reset time", mutate: func(c *Config) { c.Scheduler.StreakResetAt = "25:00" }, wantErr: "streak_reset_at"},
		{name: "api without secret", mutate: func(c *Config) { c.API.Enabled = true }, wantErr: "jwt_secret"},
		{name: "seed xp out of range", mutate: func(c *Config) { c.DefaultHabits[0].XPReward = 0 }, wantErr: "xp_reward"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour+59*time.Minute, d)

	_, err = ParseClock("noon")
	assert.Error(t, err)
}
