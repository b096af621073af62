package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var (
	ErrNoHostname      = errors.New("hostname must not be empty")
	ErrInvalidEncoding = errors.New("unknown nats encoding")
	ErrInvalidLogLevel = errors.New("unknown log level")
)

type Configuration struct {
	Hostname string   `toml:"hostname"`
	SMTP     SMTP     `toml:"smtp"`
	HTTP     HTTP     `toml:"http"`
	Log      Log      `toml:"log"`
	Delivery Delivery `toml:"delivery"`
	NATS     NATS     `toml:"nats"`
	Relay    Relay    `toml:"relay"`
	Users    []User   `toml:"users"`
}

type SMTP struct {
	Port        string   `toml:"port"`
	IdleTimeout Duration `toml:"idle_timeout"`
}

type HTTP struct {
	// Addr is where the mailbox API and /metrics are served. Empty disables
	// the HTTP server.
	Addr string `toml:"addr"`
}

type Log struct {
	Level      string `toml:"level"`
	LokiURL    string `toml:"loki_url"`
	EnableLoki bool   `toml:"enable_loki"`
}

type Delivery struct {
	Workers   int      `toml:"workers"`
	QueueSize int      `toml:"queue_size"`
	Timeout   Duration `toml:"timeout"`
	Mailbox   bool     `toml:"mailbox"`
	CatchAll  string   `toml:"catch_all"`
}

type NATS struct {
	URL      string `toml:"url"`
	Subject  string `toml:"subject"`
	Encoding string `toml:"encoding"`
}

type Relay struct {
	Smarthost    string `toml:"smarthost"`
	Port         int    `toml:"port"`
	Helo         string `toml:"helo"`
	DNSServer    string `toml:"dns_server"`
	DKIMKey      string `toml:"dkim_key"`
	DKIMDomain   string `toml:"dkim_domain"`
	DKIMSelector string `toml:"dkim_selector"`

	// Enabled turns on relaying through MX lookup when no smarthost is set.
	Enabled bool `toml:"enabled"`
}

type User struct {
	Name   string   `toml:"name"`
	Emails []string `toml:"emails"`
}

// Duration decodes TOML strings such as "2m" or "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func Defaults() Configuration {
	return Configuration{
		Hostname: "localhost",
		SMTP: SMTP{
			Port:        "2525",
			IdleTimeout: Duration{2 * time.Minute},
		},
		HTTP: HTTP{
			Addr: ":8080",
		},
		Log: Log{
			Level:   "debug",
			LokiURL: "http://localhost:3100/loki/api/v1/push",
		},
		Delivery: Delivery{
			Workers:   4,
			QueueSize: 128,
			Timeout:   Duration{30 * time.Second},
			Mailbox:   true,
		},
		NATS: NATS{
			Subject:  "smtp.incoming",
			Encoding: "json",
		},
		Relay: Relay{
			Port:         25,
			DKIMSelector: "mail",
		},
	}
}

// Load reads the TOML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (Configuration, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("Ignoring unknown config keys", "path", path, "keys", fmt.Sprint(undecoded))
	}

	return cfg, cfg.Validate()
}

func (c Configuration) Validate() error {
	if strings.TrimSpace(c.Hostname) == "" {
		return ErrNoHostname
	}

	switch c.NATS.Encoding {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidEncoding, c.NATS.Encoding)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLogLevel, l.Level)
	}
	return level, nil
}
