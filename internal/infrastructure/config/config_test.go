package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
cloud:
  base_url: "https://cloud.example.com"
  username: "driver@example.com"
  password: "hunter2"
polling:
  interval: 45
  command_timeout: 20
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cloud.Username != "driver@example.com" {
		t.Errorf("Cloud.Username = %q, want %q", cfg.Cloud.Username, "driver@example.com")
	}
	if cfg.Polling.Interval != 45 {
		t.Errorf("Polling.Interval = %d, want 45", cfg.Polling.Interval)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	content := `
cloud:
  base_url: "https://cloud.example.com"
database:
  path: "/tmp/test.db"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for missing credentials, got nil")
	}
	if !strings.Contains(err.Error(), "cloud.username") {
		t.Errorf("error = %v, want mention of cloud.username", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
cloud:
  base_url: "https://cloud.example.com"
  username: "file-user"
  password: "file-pass"
`
	t.Setenv("VANTRACK_CLOUD_USERNAME", "env-user")
	t.Setenv("VANTRACK_CLOUD_PASSWORD", "env-pass")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cloud.Username != "env-user" {
		t.Errorf("Cloud.Username = %q, want env override %q", cfg.Cloud.Username, "env-user")
	}
	if cfg.Cloud.Password != "env-pass" {
		t.Errorf("Cloud.Password = %q, want env override %q", cfg.Cloud.Password, "env-pass")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Cloud.Username = "user"
		cfg.Cloud.Password = "pass"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "empty base URL",
			mutate:  func(c *Config) { c.Cloud.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "empty password",
			mutate:  func(c *Config) { c.Cloud.Password = "" },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Polling.Interval = 0 },
			wantErr: true,
		},
		{
			name:    "negative command timeout",
			mutate:  func(c *Config) { c.Polling.CommandTimeout = -1 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_PollIntervalClamp(t *testing.T) {
	cfg := defaultConfig()

	cfg.Polling.Interval = 2
	if got := cfg.PollInterval(); got != MinPollInterval {
		t.Errorf("PollInterval() = %v, want clamped %v", got, MinPollInterval)
	}

	cfg.Polling.Interval = 120
	if got := cfg.PollInterval(); got != 120*time.Second {
		t.Errorf("PollInterval() = %v, want 120s", got)
	}
}
