package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_UsesDefaults_WhenNoFile(t *testing.T) {
	// Reset viper to avoid cross-test pollution
	viper.Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Radio.Host != "192.168.10.1" {
		t.Errorf("expected Radio.Host default 192.168.10.1, got %q", cfg.Radio.Host)
	}
	if cfg.Radio.Port != 8002 {
		t.Errorf("expected Radio.Port default 8002, got %d", cfg.Radio.Port)
	}
	if cfg.Session.FrameTimeoutSeconds != 2 {
		t.Errorf("expected Session.FrameTimeoutSeconds default 2, got %d", cfg.Session.FrameTimeoutSeconds)
	}
	if cfg.Session.HandshakeBudgetSeconds != 10 {
		t.Errorf("expected Session.HandshakeBudgetSeconds default 10, got %d", cfg.Session.HandshakeBudgetSeconds)
	}
	if cfg.Logging.Level == "" {
		t.Errorf("expected Logging.Level to be set (default info)")
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("expected Metrics.Port default 9090, got %d", cfg.Metrics.Port)
	}
	if !cfg.AuditLog.Enabled {
		t.Errorf("expected AuditLog.Enabled default true")
	}
}

func TestValidate_Errors(t *testing.T) {
	base := func() Config {
		return Config{
			Radio:   RadioConfig{Host: "192.168.10.1", Port: 8002},
			Session: SessionConfig{ConnectTimeoutSeconds: 10, HandshakeBudgetSeconds: 10, FrameTimeoutSeconds: 2, XCMPTimeoutSeconds: 2},
		}
	}

	t.Run("invalid radio port", func(t *testing.T) {
		cfg := base()
		cfg.Radio.Port = 70000
		if err := validate(&cfg); err == nil {
			t.Fatal("expected error for radio.port out of range")
		}
	})

	t.Run("non-positive session timeout", func(t *testing.T) {
		cfg := base()
		cfg.Session.FrameTimeoutSeconds = 0
		if err := validate(&cfg); err == nil {
			t.Fatal("expected error for non-positive session.frame_timeout_seconds")
		}
	})

	t.Run("metrics enabled without path", func(t *testing.T) {
		cfg := base()
		cfg.Metrics = MetricsConfig{Enabled: true, Port: 9090, Path: ""}
		if err := validate(&cfg); err == nil {
			t.Fatal("expected error for metrics enabled without path")
		}
	})

	t.Run("audit log enabled without path", func(t *testing.T) {
		cfg := base()
		cfg.AuditLog = AuditLogConfig{Enabled: true, Path: ""}
		if err := validate(&cfg); err == nil {
			t.Fatal("expected error for audit_log enabled without path")
		}
	})

	t.Run("progress hub enabled with bad port", func(t *testing.T) {
		cfg := base()
		cfg.ProgressHub = ProgressHubConfig{Enabled: true, Port: -1}
		if err := validate(&cfg); err == nil {
			t.Fatal("expected error for invalid progress_hub.port")
		}
	})
}
