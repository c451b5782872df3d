// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Race      RaceConfig      `mapstructure:"race"`
	Game      GameConfig      `mapstructure:"game"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	TUIMode bool `mapstructure:"-"` // set at runtime by the command, not from config
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// ChainConfig holds the endpoints of both block cadences.
type ChainConfig struct {
	ChainID           uint64        `mapstructure:"chain_id" validate:"gt=0"`
	StandardRPCURL    string        `mapstructure:"standard_rpc_url" validate:"required,url"`
	FlashRPCURL       string        `mapstructure:"flash_rpc_url" validate:"required,url"`
	FlashWSURL        string        `mapstructure:"flash_ws_url" validate:"required,url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	MaxReconnects     int           `mapstructure:"max_reconnects" validate:"gte=0"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff" validate:"gt=0"`
}

// WalletConfig holds the key used to submit test transactions.
type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	Recipient  string `mapstructure:"recipient" validate:"required,eth_addr"`
	ValueETH   string `mapstructure:"value_eth" validate:"required"`
	GasLimit   uint64 `mapstructure:"gas_limit" validate:"gte=21000"`
}

// HasKey reports whether submission is possible.
func (w WalletConfig) HasKey() bool {
	return strings.TrimSpace(w.PrivateKey) != ""
}

// Value returns the transfer value in ETH.
func (w WalletConfig) Value() (decimal.Decimal, error) {
	return decimal.NewFromString(w.ValueETH)
}

// CadenceConfig holds the timing of one cadence.
type CadenceConfig struct {
	BlockInterval time.Duration `mapstructure:"block_interval" validate:"gt=0"`
	PollInterval  time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// Late signal policies.
const (
	LateSignalReject = "reject"
	LateSignalAccept = "accept"
)

// RaceConfig holds confirmation race timing.
type RaceConfig struct {
	Standard         CadenceConfig `mapstructure:"standard"`
	Flash            CadenceConfig `mapstructure:"flash"`
	LateSignalPolicy string        `mapstructure:"late_signal_policy" validate:"oneof=reject accept"`
}

// GameConfig holds arena and statistics settings.
type GameConfig struct {
	Width         int           `mapstructure:"width" validate:"gte=20"`
	Height        int           `mapstructure:"height" validate:"gte=8"`
	PaddleWidth   int           `mapstructure:"paddle_width" validate:"gt=0"`
	WindowSize    int           `mapstructure:"window_size" validate:"gt=0"`
	FrameInterval time.Duration `mapstructure:"frame_interval" validate:"gt=0"`
	StatsWindow   time.Duration `mapstructure:"stats_window" validate:"gt=0"`
	StatsRefresh  time.Duration `mapstructure:"stats_refresh" validate:"gt=0"`
}

// ServerConfig holds the health and state API listener.
type ServerConfig struct {
	Port        int      `mapstructure:"port" validate:"gte=0,lte=65535"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	Provider       string `mapstructure:"provider" validate:"oneof=zipkin console otlp otlp-http"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port" validate:"gte=0,lte=65535"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("CATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "CATCHER_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "CATCHER_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "CATCHER_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("chain.standard_rpc_url", "CATCHER_STANDARD_RPC_URL")
	v.BindEnv("chain.flash_rpc_url", "CATCHER_FLASH_RPC_URL")
	v.BindEnv("chain.flash_ws_url", "CATCHER_FLASH_WS_URL")
	v.BindEnv("chain.chain_id", "CATCHER_CHAIN_ID")

	v.BindEnv("wallet.private_key", "CATCHER_PRIVATE_KEY", "PRIVATE_KEY")
	v.BindEnv("wallet.recipient", "CATCHER_RECIPIENT")

	v.BindEnv("race.late_signal_policy", "CATCHER_LATE_SIGNAL_POLICY")

	v.BindEnv("server.port", "CATCHER_SERVER_PORT")

	v.BindEnv("telemetry.enabled", "CATCHER_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "CATCHER_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "CATCHER_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "CATCHER_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "flashblocks-catcher")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Base Sepolia
	v.SetDefault("chain.chain_id", 84532)
	v.SetDefault("chain.standard_rpc_url", "https://sepolia.base.org")
	v.SetDefault("chain.flash_rpc_url", "https://sepolia-preconf.base.org")
	v.SetDefault("chain.flash_ws_url", "wss://sepolia.flashblocks.base.org/ws")
	v.SetDefault("chain.requests_per_second", 25)
	v.SetDefault("chain.request_timeout", "5s")
	v.SetDefault("chain.max_reconnects", 0) // infinite
	v.SetDefault("chain.initial_backoff", "1s")
	v.SetDefault("chain.max_backoff", "30s")

	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.recipient", "0x4200000000000000000000000000000000000006")
	v.SetDefault("wallet.value_eth", "0")
	v.SetDefault("wallet.gas_limit", 21000)

	v.SetDefault("race.standard.block_interval", "2s")
	v.SetDefault("race.standard.poll_interval", "800ms")
	v.SetDefault("race.standard.timeout", "60s")
	v.SetDefault("race.flash.block_interval", "200ms")
	v.SetDefault("race.flash.poll_interval", "100ms")
	v.SetDefault("race.flash.timeout", "30s")
	v.SetDefault("race.late_signal_policy", LateSignalReject)

	v.SetDefault("game.width", 60)
	v.SetDefault("game.height", 20)
	v.SetDefault("game.paddle_width", 12)
	v.SetDefault("game.window_size", 50)
	v.SetDefault("game.frame_interval", "50ms")
	v.SetDefault("game.stats_window", "60s")
	v.SetDefault("game.stats_refresh", "5s")

	v.SetDefault("server.port", 8081)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "flashblocks-catcher")
	v.SetDefault("telemetry.provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if c.Chain.MaxBackoff < c.Chain.InitialBackoff {
		return fmt.Errorf("chain.max_backoff (%s) must not be below chain.initial_backoff (%s)",
			c.Chain.MaxBackoff, c.Chain.InitialBackoff)
	}
	if c.Race.Flash.PollInterval >= c.Race.Flash.Timeout {
		return fmt.Errorf("race.flash.poll_interval must be shorter than race.flash.timeout")
	}
	if c.Race.Standard.PollInterval >= c.Race.Standard.Timeout {
		return fmt.Errorf("race.standard.poll_interval must be shorter than race.standard.timeout")
	}
	if c.Game.PaddleWidth >= c.Game.Width {
		return fmt.Errorf("game.paddle_width must be narrower than game.width")
	}
	if v, err := c.Wallet.Value(); err != nil || v.IsNegative() {
		return fmt.Errorf("wallet.value_eth must be a non-negative decimal, got %q", c.Wallet.ValueETH)
	}
	return nil
}
