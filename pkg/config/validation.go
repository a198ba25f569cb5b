package config

import (
	"fmt"
)

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Radio.Port <= 0 || cfg.Radio.Port > 65535 {
		return fmt.Errorf("radio.port must be between 1 and 65535")
	}

	if cfg.Session.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("session.connect_timeout_seconds must be positive")
	}
	if cfg.Session.HandshakeBudgetSeconds <= 0 {
		return fmt.Errorf("session.handshake_budget_seconds must be positive")
	}
	if cfg.Session.FrameTimeoutSeconds <= 0 {
		return fmt.Errorf("session.frame_timeout_seconds must be positive")
	}
	if cfg.Session.XCMPTimeoutSeconds <= 0 {
		return fmt.Errorf("session.xcmp_timeout_seconds must be positive")
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be between 1 and 65535")
		}
		if cfg.Metrics.Path == "" {
			return fmt.Errorf("metrics.path is required when metrics are enabled")
		}
	}

	if cfg.AuditLog.Enabled && cfg.AuditLog.Path == "" {
		return fmt.Errorf("audit_log.path is required when audit_log is enabled")
	}

	if cfg.ProgressHub.Enabled {
		if cfg.ProgressHub.Port <= 0 || cfg.ProgressHub.Port > 65535 {
			return fmt.Errorf("progress_hub.port must be between 1 and 65535")
		}
	}

	return nil
}
