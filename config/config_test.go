package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/warp/timesheet-engine/timesheet"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, timesheet.DefaultConfig().DefaultBreakMinutes, cfg.Engine.DefaultBreakMinutes)
	assert.Equal(t, "BY", cfg.Engine.DefaultStateCode)
	assert.Equal(t, 10*time.Second, cfg.Holidays.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, 8080, cfg.Server.Port)

	core := cfg.TimesheetConfig()
	assert.True(t, core.UndertimeCriticalThreshold.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 2000, core.MinYear)
	assert.Equal(t, 2100, core.MaxYear)
}

func TestExampleYAML_IsValid(t *testing.T) {
	cfg, err := ValidateYAMLContent([]byte(ExampleYAML()))
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	// GIVEN: a config file setting the state and an env var overriding the port
	// WHEN: loaded
	// THEN: env wins over file, file wins over defaults

	path := filepath.Join(t.TempDir(), "timesheet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  default_state_code: "BE"
  undertime_critical_threshold: 7.5
server:
  port: 9000
`), 0o600))
	t.Setenv("TIMESHEET_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "BE", cfg.Engine.DefaultStateCode)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.True(t, cfg.TimesheetConfig().UndertimeCriticalThreshold.Equal(decimal.RequireFromString("7.5")))
}

func TestValidateYAMLContent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"start hour out of range", "engine:\n  default_start_hour: 24\n"},
		{"year range inverted", "engine:\n  min_year: 2200\n"},
		{"recent default above max", "engine:\n  recent_months_default: 30\n"},
		{"unknown state", "engine:\n  default_state_code: \"XX\"\n"},
		{"bad log level", "log:\n  level: \"verbose\"\n"},
		{"bad holiday url", "holidays:\n  base_url: \"not a url\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateYAMLContent([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Log.Level = "debug"
	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	cfg.Log.Level = "nope"
	_, err = cfg.Logger()
	assert.Error(t, err)
}
