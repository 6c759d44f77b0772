// Package config provides Viper-based configuration loading for the
// AmbonMUD server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TelnetConfig holds the Telnet transport settings.
type TelnetConfig struct {
	// Host is the bind address for the Telnet listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the Telnet listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-read timeout for Telnet connections.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout for Telnet connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ReadBufferBytes sizes the blocking read buffer feeding the decoder.
	ReadBufferBytes int `mapstructure:"read_buffer_bytes"`
	// LineMaxLength is the maximum accepted input line length in bytes.
	LineMaxLength int `mapstructure:"line_max_length"`
	// MaxNonPrintablePerLine caps non-printable bytes per input line.
	MaxNonPrintablePerLine int `mapstructure:"max_non_printable_per_line"`
	// MaxSubnegotiationLength caps a single subnegotiation payload.
	MaxSubnegotiationLength int `mapstructure:"max_subnegotiation_length"`
}

// Addr returns the "host:port" listen address.
func (t TelnetConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// WebConfig holds the WebSocket/HTTP transport settings.
type WebConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// StopGracePeriod is how long Stop lets in-flight frames drain.
	StopGracePeriod time.Duration `mapstructure:"stop_grace_period"`
	// StopTimeout bounds the whole graceful stop.
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
	// MaxCloseReasonLength truncates close reasons sent to clients.
	MaxCloseReasonLength int `mapstructure:"max_close_reason_length"`
}

// Addr returns the "host:port" listen address.
func (w WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// EngineConfig holds the simulation settings.
type EngineConfig struct {
	// TickMillis is the fixed engine tick period.
	TickMillis int `mapstructure:"tick_millis"`
	// InboundBudgetMillis bounds inbound draining per tick. Must be > 0 and
	// < TickMillis.
	InboundBudgetMillis int `mapstructure:"inbound_budget_millis"`
	// InboundChannelCapacity sizes the inbound bus.
	InboundChannelCapacity int `mapstructure:"inbound_channel_capacity"`
	// OutboundChannelCapacity sizes the outbound bus.
	OutboundChannelCapacity int `mapstructure:"outbound_channel_capacity"`
	// SessionOutboundQueueCapacity sizes each per-session frame queue.
	SessionOutboundQueueCapacity int `mapstructure:"session_outbound_queue_capacity"`
	// SessionOutboundTimeout is the enqueue wait before a session is closed
	// for backpressure.
	SessionOutboundTimeout time.Duration `mapstructure:"session_outbound_timeout"`
	// InboundRetryLimit is how many consecutive full-bus retries a transport
	// attempts before disconnecting a session.
	InboundRetryLimit int `mapstructure:"inbound_retry_limit"`
	// SchedulerMaxActionsPerTick caps scheduler actions per tick.
	SchedulerMaxActionsPerTick int `mapstructure:"scheduler_max_actions_per_tick"`
	// BehaviorMaxActionsPerTick caps mob behavior ticks per engine tick.
	BehaviorMaxActionsPerTick int `mapstructure:"behavior_max_actions_per_tick"`
	// BehaviorMinActionDelay / BehaviorMaxActionDelay bound the random
	// per-mob think interval.
	BehaviorMinActionDelay time.Duration `mapstructure:"behavior_min_action_delay"`
	BehaviorMaxActionDelay time.Duration `mapstructure:"behavior_max_action_delay"`
	// CombatRoundMillis is the swing interval for players and mobs.
	CombatRoundMillis int `mapstructure:"combat_round_millis"`
	// RegenIntervalMillis is the per-player regeneration interval.
	RegenIntervalMillis int `mapstructure:"regen_interval_millis"`
	// PromptText is the prompt template; %h/%H and %m/%M expand to vitals.
	PromptText string `mapstructure:"prompt_text"`
	// GatewayID selects the snowflake gateway id; 0 means single-node
	// counter allocation.
	GatewayID int `mapstructure:"gateway_id"`
}

// TickPeriod returns the tick period as a Duration.
func (e EngineConfig) TickPeriod() time.Duration {
	return time.Duration(e.TickMillis) * time.Millisecond
}

// InboundBudget returns the per-tick inbound drain budget as a Duration.
func (e EngineConfig) InboundBudget() time.Duration {
	return time.Duration(e.InboundBudgetMillis) * time.Millisecond
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled publishes the expvar endpoint on the web listener.
	Enabled bool `mapstructure:"enabled"`
	// Tags are static key/value pairs attached to every metric.
	Tags map[string]string `mapstructure:"tags"`
}

// Config is the top-level application configuration.
type Config struct {
	Telnet   TelnetConfig   `mapstructure:"telnet"`
	Web      WebConfig      `mapstructure:"web"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if the configuration is valid, or an error
// describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validatePort("telnet.port", c.Telnet.Port); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validatePort("web.port", c.Web.Port); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Telnet.LineMaxLength < 1 {
		errs = append(errs, fmt.Sprintf("telnet.line_max_length must be >= 1, got %d", c.Telnet.LineMaxLength))
	}
	if c.Telnet.ReadBufferBytes < 1 {
		errs = append(errs, fmt.Sprintf("telnet.read_buffer_bytes must be >= 1, got %d", c.Telnet.ReadBufferBytes))
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEngine(c.Engine); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be 1-65535, got %d", key, port)
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must be in [0, max_conns]")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	var errs []string
	if e.TickMillis < 1 {
		errs = append(errs, fmt.Sprintf("engine.tick_millis must be >= 1, got %d", e.TickMillis))
	}
	if e.InboundBudgetMillis <= 0 || e.InboundBudgetMillis >= e.TickMillis {
		errs = append(errs, fmt.Sprintf("engine.inbound_budget_millis must be > 0 and < tick_millis, got %d", e.InboundBudgetMillis))
	}
	if e.InboundChannelCapacity < 1 {
		errs = append(errs, "engine.inbound_channel_capacity must be >= 1")
	}
	if e.OutboundChannelCapacity < 1 {
		errs = append(errs, "engine.outbound_channel_capacity must be >= 1")
	}
	if e.SessionOutboundQueueCapacity < 1 {
		errs = append(errs, "engine.session_outbound_queue_capacity must be >= 1")
	}
	if e.InboundRetryLimit < 1 {
		errs = append(errs, "engine.inbound_retry_limit must be >= 1")
	}
	if e.SchedulerMaxActionsPerTick < 1 {
		errs = append(errs, "engine.scheduler_max_actions_per_tick must be >= 1")
	}
	if e.BehaviorMaxActionsPerTick < 1 {
		errs = append(errs, "engine.behavior_max_actions_per_tick must be >= 1")
	}
	if e.BehaviorMinActionDelay <= 0 || e.BehaviorMaxActionDelay < e.BehaviorMinActionDelay {
		errs = append(errs, "engine.behavior action delays must satisfy 0 < min <= max")
	}
	if e.CombatRoundMillis < 1 {
		errs = append(errs, "engine.combat_round_millis must be >= 1")
	}
	if e.RegenIntervalMillis < 1 {
		errs = append(errs, "engine.regen_interval_millis must be >= 1")
	}
	if e.GatewayID < 0 || e.GatewayID > 65535 {
		errs = append(errs, fmt.Sprintf("engine.gateway_id must be 0-65535, got %d", e.GatewayID))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid YAML configuration file path.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with MUD_ prefix
	v.SetEnvPrefix("MUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewDefaultViper returns a Viper instance carrying only the defaults.
// Tests build configs from it.
func NewDefaultViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telnet.host", "0.0.0.0")
	v.SetDefault("telnet.port", 4000)
	v.SetDefault("telnet.read_timeout", "5m")
	v.SetDefault("telnet.write_timeout", "30s")
	v.SetDefault("telnet.read_buffer_bytes", 4096)
	v.SetDefault("telnet.line_max_length", 1024)
	v.SetDefault("telnet.max_non_printable_per_line", 32)
	v.SetDefault("telnet.max_subnegotiation_length", 4096)

	v.SetDefault("web.host", "0.0.0.0")
	v.SetDefault("web.port", 8080)
	v.SetDefault("web.stop_grace_period", "1s")
	v.SetDefault("web.stop_timeout", "10s")
	v.SetDefault("web.max_close_reason_length", 120)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mud")
	v.SetDefault("database.password", "mud")
	v.SetDefault("database.name", "mud")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("engine.tick_millis", 100)
	v.SetDefault("engine.inbound_budget_millis", 50)
	v.SetDefault("engine.inbound_channel_capacity", 1024)
	v.SetDefault("engine.outbound_channel_capacity", 4096)
	v.SetDefault("engine.session_outbound_queue_capacity", 256)
	v.SetDefault("engine.session_outbound_timeout", "250ms")
	v.SetDefault("engine.inbound_retry_limit", 5)
	v.SetDefault("engine.scheduler_max_actions_per_tick", 128)
	v.SetDefault("engine.behavior_max_actions_per_tick", 64)
	v.SetDefault("engine.behavior_min_action_delay", "2s")
	v.SetDefault("engine.behavior_max_action_delay", "5s")
	v.SetDefault("engine.combat_round_millis", 2000)
	v.SetDefault("engine.regen_interval_millis", 5000)
	v.SetDefault("engine.prompt_text", "[%h/%Hhp %m/%Mmp]> ")
	v.SetDefault("engine.gateway_id", 0)

	v.SetDefault("metrics.enabled", true)
}
