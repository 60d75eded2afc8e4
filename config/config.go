/*
Package config loads the runtime configuration of the timesheet engine.

PURPOSE:
  Reads a YAML file (optional) plus TIMESHEET_* environment overrides with
  viper, validates the result with struct tags and cross-field checks, and
  converts the engine section to timesheet.Config. The timesheet package
  never imports viper.

ENVIRONMENT:
  Keys map to variables by upper-casing and replacing "." with "_":
    engine.default_state_code -> TIMESHEET_ENGINE_DEFAULT_STATE_CODE
    database.path             -> TIMESHEET_DATABASE_PATH

SEE ALSO:
  - timesheet/config.go: Engine-level configuration
  - cmd/server/main.go: Flag binding
*/
package config

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/timesheet-engine/holiday"
	"github.com/warp/timesheet-engine/timesheet"
)

const (
	EnvPrefix = "TIMESHEET"

	KeyDefaultBreakMinutes        = "engine.default_break_minutes"
	KeyDefaultStartHour           = "engine.default_start_hour"
	KeyDefaultWorkingDaysPerWeek  = "engine.default_working_days_per_week"
	KeyUndertimeCriticalThreshold = "engine.undertime_critical_threshold"
	KeyRecentMonthsDefault        = "engine.recent_months_default"
	KeyMaxRecentMonths            = "engine.max_recent_months"
	KeyMinYear                    = "engine.min_year"
	KeyMaxYear                    = "engine.max_year"
	KeyDefaultStateCode           = "engine.default_state_code"
	KeyHolidaysBaseURL            = "holidays.base_url"
	KeyHolidaysTimeout            = "holidays.timeout"
	KeyServerPort                 = "server.port"
	KeyServerAllowedOrigins       = "server.allowed_origins"
	KeyDatabasePath               = "database.path"
	KeyStatusesFile               = "database.statuses_file"
	KeyLogLevel                   = "log.level"
	KeyLogDevelopment             = "log.development"
	KeySchedulerEnabled           = "scheduler.enabled"
	KeySchedulerInterval          = "scheduler.interval"
)

type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Holidays  HolidaysConfig  `mapstructure:"holidays"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type EngineConfig struct {
	DefaultBreakMinutes        int     `mapstructure:"default_break_minutes" validate:"gte=0,lte=720"`
	DefaultStartHour           int     `mapstructure:"default_start_hour" validate:"gte=0,lte=23"`
	DefaultWorkingDaysPerWeek  int     `mapstructure:"default_working_days_per_week" validate:"gte=1,lte=7"`
	UndertimeCriticalThreshold float64 `mapstructure:"undertime_critical_threshold" validate:"gte=0"`
	RecentMonthsDefault        int     `mapstructure:"recent_months_default" validate:"gte=1"`
	MaxRecentMonths            int     `mapstructure:"max_recent_months" validate:"gte=1"`
	MinYear                    int     `mapstructure:"min_year" validate:"gte=1"`
	MaxYear                    int     `mapstructure:"max_year" validate:"gte=1"`
	DefaultStateCode           string  `mapstructure:"default_state_code" validate:"required"`
}

type HolidaysConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" validate:"gte=1,lte=65535"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Path         string `mapstructure:"path" validate:"required"`
	StatusesFile string `mapstructure:"statuses_file"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}

// New returns a viper instance with defaults and env overrides applied.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and validates the result.
func Load(path string) (*Config, error) {
	return LoadFile(New(), path)
}

// LoadFile is Load on a caller-prepared viper instance (e.g. with bound flags).
func LoadFile(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return LoadAndValidate(v)
}

// ValidateYAMLContent validates configuration from raw YAML content.
func ValidateYAMLContent(content []byte) (*Config, error) {
	v := New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("read config content: %w", err)
	}
	return LoadAndValidate(v)
}

// LoadAndValidate unmarshals v and validates it.
func LoadAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := cfg.validateCrossFields(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validateCrossFields() error {
	e := c.Engine
	if e.MinYear > e.MaxYear {
		return fmt.Errorf("validation failed: engine.min_year %d exceeds engine.max_year %d", e.MinYear, e.MaxYear)
	}
	if e.RecentMonthsDefault > e.MaxRecentMonths {
		return fmt.Errorf("validation failed: engine.recent_months_default %d exceeds engine.max_recent_months %d",
			e.RecentMonthsDefault, e.MaxRecentMonths)
	}
	if !holiday.ValidStateCode(e.DefaultStateCode) {
		return fmt.Errorf("validation failed: engine.default_state_code %q is not a known state", e.DefaultStateCode)
	}
	return nil
}

// TimesheetConfig converts the engine section to the core configuration.
func (c *Config) TimesheetConfig() timesheet.Config {
	e := c.Engine
	return timesheet.Config{
		DefaultBreakMinutes:        e.DefaultBreakMinutes,
		DefaultStartHour:           e.DefaultStartHour,
		DefaultWorkingDaysPerWeek:  e.DefaultWorkingDaysPerWeek,
		UndertimeCriticalThreshold: decimal.NewFromFloat(e.UndertimeCriticalThreshold).Round(2),
		RecentMonthsDefault:        e.RecentMonthsDefault,
		MaxRecentMonths:            e.MaxRecentMonths,
		MinYear:                    e.MinYear,
		MaxYear:                    e.MaxYear,
		DefaultStateCode:           e.DefaultStateCode,
	}
}

// Logger builds the zap logger described by the log section.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// ExampleYAML returns the default configuration template.
func ExampleYAML() string {
	return `# timesheet-engine configuration
engine:
  default_break_minutes: 30
  default_start_hour: 8
  default_working_days_per_week: 5
  undertime_critical_threshold: 5
  recent_months_default: 3
  max_recent_months: 24
  min_year: 2000
  max_year: 2100
  default_state_code: "BY"

holidays:
  base_url: "https://feiertage-api.de/api/"
  timeout: 10s

server:
  port: 8080
  allowed_origins: ["*"]

database:
  path: "timesheet.db"
  statuses_file: ""

log:
  level: "info"
  development: false

scheduler:
  enabled: false
  interval: 24h
`
}

func setDefaults(v *viper.Viper) {
	d := timesheet.DefaultConfig()
	threshold, _ := d.UndertimeCriticalThreshold.Float64()

	v.SetDefault(KeyDefaultBreakMinutes, d.DefaultBreakMinutes)
	v.SetDefault(KeyDefaultStartHour, d.DefaultStartHour)
	v.SetDefault(KeyDefaultWorkingDaysPerWeek, d.DefaultWorkingDaysPerWeek)
	v.SetDefault(KeyUndertimeCriticalThreshold, threshold)
	v.SetDefault(KeyRecentMonthsDefault, d.RecentMonthsDefault)
	v.SetDefault(KeyMaxRecentMonths, d.MaxRecentMonths)
	v.SetDefault(KeyMinYear, d.MinYear)
	v.SetDefault(KeyMaxYear, d.MaxYear)
	v.SetDefault(KeyDefaultStateCode, d.DefaultStateCode)
	v.SetDefault(KeyHolidaysBaseURL, holiday.DefaultBaseURL)
	v.SetDefault(KeyHolidaysTimeout, 10*time.Second)
	v.SetDefault(KeyServerPort, 8080)
	v.SetDefault(KeyServerAllowedOrigins, []string{"*"})
	v.SetDefault(KeyDatabasePath, "timesheet.db")
	v.SetDefault(KeyStatusesFile, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogDevelopment, false)
	v.SetDefault(KeySchedulerEnabled, false)
	v.SetDefault(KeySchedulerInterval, 24*time.Hour)
}
