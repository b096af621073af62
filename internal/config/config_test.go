package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	if cfg.Hostname != "localhost" || cfg.SMTP.Port != "2525" {
		t.Errorf("Expected hostname=localhost and port=2525, got hostname=%s and port=%s", cfg.Hostname, cfg.SMTP.Port)
	}
	if cfg.SMTP.IdleTimeout.Duration != 2*time.Minute {
		t.Errorf("Expected idle timeout 2m, got %s", cfg.SMTP.IdleTimeout)
	}
	if !cfg.Delivery.Mailbox {
		t.Error("Expected mailbox delivery to be enabled by default")
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
hostname = "mail.example.com"

[smtp]
port = "25"
idle_timeout = "30s"

[log]
level = "warn"

[delivery]
workers = 8
catch_all = "oliver"

[nats]
url = "nats://localhost:4222"
encoding = "msgpack"

[relay]
smarthost = "smtp.example.com"
port = 587

[[users]]
name = "oliver"
emails = ["oliver@example.com", "postmaster@example.com"]

[[users]]
name = "peter"
emails = ["peter@example.com"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Hostname != "mail.example.com" {
		t.Errorf("Expected hostname mail.example.com, got %s", cfg.Hostname)
	}
	if cfg.SMTP.Port != "25" || cfg.SMTP.IdleTimeout.Duration != 30*time.Second {
		t.Errorf("Expected port 25 and idle timeout 30s, got %s and %s", cfg.SMTP.Port, cfg.SMTP.IdleTimeout)
	}
	if cfg.Delivery.Workers != 8 || cfg.Delivery.QueueSize != 128 {
		t.Errorf("Expected workers 8 and default queue size 128, got %d and %d", cfg.Delivery.Workers, cfg.Delivery.QueueSize)
	}
	if cfg.NATS.Encoding != "msgpack" || cfg.NATS.Subject != "smtp.incoming" {
		t.Errorf("Expected msgpack on smtp.incoming, got %s on %s", cfg.NATS.Encoding, cfg.NATS.Subject)
	}
	if cfg.Relay.Smarthost != "smtp.example.com" || cfg.Relay.Port != 587 {
		t.Errorf("Expected smarthost smtp.example.com:587, got %s:%d", cfg.Relay.Smarthost, cfg.Relay.Port)
	}
	if len(cfg.Users) != 2 || len(cfg.Users[0].Emails) != 2 {
		t.Errorf("Expected 2 users, got %+v", cfg.Users)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil || level != slog.LevelWarn {
		t.Errorf("Expected level WARN, got %s (%v)", level, err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Hostname = " "
	if err := cfg.Validate(); !errors.Is(err, ErrNoHostname) {
		t.Errorf("Expected ErrNoHostname, got %v", err)
	}

	cfg = Defaults()
	cfg.NATS.Encoding = "xml"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("Expected ErrInvalidEncoding, got %v", err)
	}

	cfg = Defaults()
	cfg.Log.Level = "loud"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("Expected ErrInvalidLogLevel, got %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, "[smtp]\nidle_timeout = \"soon\"\n")
	if _, err := Load(path); err == nil {
		t.Error("Expected invalid duration to fail")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected missing file to fail")
	}
}
