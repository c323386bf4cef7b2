package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crudsync/internal/strategy"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "crudsync.db", cfg.Database)
	assert.Equal(t, "users", cfg.Collection)
	assert.Equal(t, strategy.KindManual, cfg.Strategy)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
database: /tmp/app.db
strategy: invalidate-on-success
timeout: 250ms
generation_guard: true
log_level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/app.db", cfg.Database)
	assert.Equal(t, "users", cfg.Collection, "unset fields keep defaults")
	assert.Equal(t, strategy.KindInvalidate, cfg.Strategy)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.True(t, cfg.GenerationGuard)
	assert.Len(t, cfg.StrategyOptions(), 2)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("databse: typo.db\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "databse")
}

func TestParse_RejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"strategy":  "strategy: eventual\n",
		"log level": "log_level: loud\n",
		"timeout":   "timeout: -1s\n",
		"database":  "database: \"\"\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, Default().Database, cfg.Database)

	_, err = Load(path, true)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crudsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: file.db\nstrategy: manual\n"), 0o644))

	t.Setenv(EnvDatabase, "env.db")
	t.Setenv(EnvStrategy, "optimistic")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, strategy.KindOptimistic, cfg.Strategy)
	assert.Equal(t, "users", cfg.Collection)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}
