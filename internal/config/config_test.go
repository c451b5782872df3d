package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Chain.ChainID != 84532 {
		t.Errorf("ChainID = %d", cfg.Chain.ChainID)
	}
	if cfg.Chain.FlashWSURL != "wss://sepolia.flashblocks.base.org/ws" {
		t.Errorf("FlashWSURL = %s", cfg.Chain.FlashWSURL)
	}
	if cfg.Race.Flash.Timeout != 30*time.Second || cfg.Race.Standard.Timeout != 60*time.Second {
		t.Errorf("timeouts = %s / %s", cfg.Race.Flash.Timeout, cfg.Race.Standard.Timeout)
	}
	if cfg.Race.Flash.PollInterval != 100*time.Millisecond {
		t.Errorf("flash poll = %s", cfg.Race.Flash.PollInterval)
	}
	if cfg.Race.LateSignalPolicy != LateSignalReject {
		t.Errorf("LateSignalPolicy = %s", cfg.Race.LateSignalPolicy)
	}
	if cfg.Game.WindowSize != 50 {
		t.Errorf("WindowSize = %d", cfg.Game.WindowSize)
	}
	if cfg.Wallet.HasKey() {
		t.Error("no key should be configured by default")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catcher.yaml")
	yaml := `
app:
  log_level: debug
race:
  flash:
    timeout: 10s
game:
  width: 80
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CATCHER_PRIVATE_KEY", "0xabc")
	t.Setenv("CATCHER_LATE_SIGNAL_POLICY", "accept")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.LogLevel != "debug" {
		t.Errorf("LogLevel = %s", cfg.App.LogLevel)
	}
	if cfg.Race.Flash.Timeout != 10*time.Second {
		t.Errorf("flash timeout = %s", cfg.Race.Flash.Timeout)
	}
	if cfg.Game.Width != 80 {
		t.Errorf("Width = %d", cfg.Game.Width)
	}
	if !cfg.Wallet.HasKey() {
		t.Error("private key from env was not bound")
	}
	if cfg.Race.LateSignalPolicy != LateSignalAccept {
		t.Errorf("LateSignalPolicy = %s", cfg.Race.LateSignalPolicy)
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad log level", mutate: func(c *Config) { c.App.LogLevel = "loud" }, wantErr: "LogLevel"},
		{name: "bad recipient", mutate: func(c *Config) { c.Wallet.Recipient = "0x123" }, wantErr: "Recipient"},
		{name: "missing ws url", mutate: func(c *Config) { c.Chain.FlashWSURL = "" }, wantErr: "FlashWSURL"},
		{name: "zero chain id", mutate: func(c *Config) { c.Chain.ChainID = 0 }, wantErr: "ChainID"},
		{name: "unknown policy", mutate: func(c *Config) { c.Race.LateSignalPolicy = "maybe" }, wantErr: "LateSignalPolicy"},
		{name: "backoff order", mutate: func(c *Config) { c.Chain.MaxBackoff = time.Millisecond }, wantErr: "max_backoff"},
		{name: "poll beyond timeout", mutate: func(c *Config) { c.Race.Flash.PollInterval = time.Minute }, wantErr: "race.flash"},
		{name: "paddle too wide", mutate: func(c *Config) { c.Game.PaddleWidth = 100 }, wantErr: "paddle_width"},
		{name: "negative value", mutate: func(c *Config) { c.Wallet.ValueETH = "-1" }, wantErr: "value_eth"},
		{name: "non numeric value", mutate: func(c *Config) { c.Wallet.ValueETH = "one" }, wantErr: "value_eth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
