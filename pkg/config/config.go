package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config represents the trboctl application configuration
type Config struct {
	Radio     RadioConfig     `mapstructure:"radio"`
	Session   SessionConfig   `mapstructure:"session"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	AuditLog  AuditLogConfig  `mapstructure:"audit_log"`
	ProgressHub ProgressHubConfig `mapstructure:"progress_hub"`
}

// RadioConfig holds the network endpoint and key material for a target radio
type RadioConfig struct {
	Host string `mapstructure:"host"` // typically 192.168.10.1 via CDC-ECM
	Port int    `mapstructure:"port"` // typically 8002

	// KeyFile points to a file holding the 16-byte TEA key as 32 hex
	// characters. Key material has no place in defaults; it is only ever
	// read from an operator-supplied file, never hard-coded.
	KeyFile string `mapstructure:"key_file"`

	// DeltaOverride, if non-zero, replaces the default Motorola TEA delta
	// constant. Present for radio families discovered to use a different
	// constant; zero means "use the documented 0x790AB771".
	DeltaOverride uint32 `mapstructure:"delta_override"`
}

// SessionConfig holds XNL/XCMP timing parameters
type SessionConfig struct {
	ConnectTimeoutSeconds  int `mapstructure:"connect_timeout_seconds"`  // TCP connect deadline
	HandshakeBudgetSeconds int `mapstructure:"handshake_budget_seconds"` // WaitMaster..Ready budget
	FrameTimeoutSeconds    int `mapstructure:"frame_timeout_seconds"`    // per-frame recv deadline
	XCMPTimeoutSeconds     int `mapstructure:"xcmp_timeout_seconds"`     // per-request reply deadline
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds in-process metrics exposition configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// AuditLogConfig holds the local SQLite operation-journal configuration
type AuditLogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ProgressHubConfig holds the WebSocket progress fan-out server configuration
type ProgressHubConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("trboctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/trbo-xnl")
	}

	viper.SetEnvPrefix("TRBO")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("radio.host", "192.168.10.1")
	viper.SetDefault("radio.port", 8002)

	viper.SetDefault("session.connect_timeout_seconds", 10)
	viper.SetDefault("session.handshake_budget_seconds", 10)
	viper.SetDefault("session.frame_timeout_seconds", 2)
	viper.SetDefault("session.xcmp_timeout_seconds", 2)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("audit_log.enabled", true)
	viper.SetDefault("audit_log.path", "trboctl-audit.db")

	viper.SetDefault("progress_hub.enabled", false)
	viper.SetDefault("progress_hub.port", 9091)
}
