// Package config loads the simpit-host TOML configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"simpit/host/logging"
	"simpit/host/serial"
	"simpit/host/simpit"
	"simpit/protocol"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("config: invalid")

// Config is the complete host configuration
type Config struct {
	Serial SerialConfig
	Engine EngineConfig
	HTTP   HTTPConfig
	Log    logging.Config
}

// SerialConfig is the [serial] section
type SerialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// EngineConfig is the [engine] section
type EngineConfig struct {
	QueueSize         int
	PollInterval      time.Duration
	HandshakeRetry    time.Duration
	HeartbeatInterval time.Duration
	StatusInterval    time.Duration
	EchoMessage       string

	// Channels to subscribe to after the handshake; nil means all
	Channels []protocol.Datagram
}

// HTTPConfig is the [http] section
type HTTPConfig struct {
	Addr string // empty disables the HTTP surface
}

type fileConfig struct {
	Serial struct {
		Device      string `toml:"device"`
		Baud        int    `toml:"baud"`
		ReadTimeout string `toml:"read_timeout"`
	} `toml:"serial"`
	Engine struct {
		QueueSize         int      `toml:"queue_size"`
		PollInterval      string   `toml:"poll_interval"`
		HandshakeRetry    string   `toml:"handshake_retry"`
		HeartbeatInterval string   `toml:"heartbeat_interval"`
		StatusInterval    string   `toml:"status_interval"`
		EchoMessage       string   `toml:"echo_message"`
		Channels          []string `toml:"channels"`
	} `toml:"engine"`
	HTTP struct {
		Addr string `toml:"addr"`
	} `toml:"http"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// Default returns the built-in configuration
func Default() Config {
	engine := simpit.DefaultConfig()
	return Config{
		Serial: SerialConfig{
			Device:      "/dev/ttyACM0",
			Baud:        9600,
			ReadTimeout: 50 * time.Millisecond,
		},
		Engine: EngineConfig{
			QueueSize:         engine.QueueSize,
			PollInterval:      engine.PollInterval,
			HandshakeRetry:    engine.HandshakeRetry,
			HeartbeatInterval: engine.HeartbeatInterval,
			StatusInterval:    10 * time.Second,
			EchoMessage:       engine.EchoMessage,
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:8080",
		},
		Log: logging.DefaultConfig(),
	}
}

// Load reads path on top of Default. Keys absent from the file keep their
// default values.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(Default(), raw, meta)
}

// Parse decodes TOML text on top of Default
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(Default(), raw, meta)
}

func apply(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}

	if meta.IsDefined("serial", "device") {
		cfg.Serial.Device = strings.TrimSpace(raw.Serial.Device)
	}
	if meta.IsDefined("serial", "baud") {
		cfg.Serial.Baud = raw.Serial.Baud
	}
	if err := parseDuration(meta, raw.Serial.ReadTimeout, &cfg.Serial.ReadTimeout, "serial", "read_timeout"); err != nil {
		return Config{}, err
	}

	if meta.IsDefined("engine", "queue_size") {
		cfg.Engine.QueueSize = raw.Engine.QueueSize
	}
	if err := parseDuration(meta, raw.Engine.PollInterval, &cfg.Engine.PollInterval, "engine", "poll_interval"); err != nil {
		return Config{}, err
	}
	if err := parseDuration(meta, raw.Engine.HandshakeRetry, &cfg.Engine.HandshakeRetry, "engine", "handshake_retry"); err != nil {
		return Config{}, err
	}
	if err := parseDuration(meta, raw.Engine.HeartbeatInterval, &cfg.Engine.HeartbeatInterval, "engine", "heartbeat_interval"); err != nil {
		return Config{}, err
	}
	if err := parseDuration(meta, raw.Engine.StatusInterval, &cfg.Engine.StatusInterval, "engine", "status_interval"); err != nil {
		return Config{}, err
	}
	if meta.IsDefined("engine", "echo_message") {
		cfg.Engine.EchoMessage = raw.Engine.EchoMessage
	}
	if meta.IsDefined("engine", "channels") {
		channels, err := parseChannels(raw.Engine.Channels)
		if err != nil {
			return Config{}, err
		}
		cfg.Engine.Channels = channels
	}

	if meta.IsDefined("http", "addr") {
		cfg.HTTP.Addr = strings.TrimSpace(raw.HTTP.Addr)
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.TrimSpace(raw.Log.Format)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseDuration(meta toml.MetaData, raw string, dst *time.Duration, key ...string) error {
	if !meta.IsDefined(key...) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse %s: %w", strings.Join(key, "."), err)
	}
	*dst = d
	return nil
}

// parseChannels resolves datagram names. A single "all" entry selects
// every datagram.
func parseChannels(names []string) ([]protocol.Datagram, error) {
	if len(names) == 1 && strings.EqualFold(strings.TrimSpace(names[0]), "all") {
		return nil, nil
	}
	out := make([]protocol.Datagram, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		d, ok := protocol.ParseDatagram(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalid, name)
		}
		out = append(out, d)
	}
	return out, nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	switch {
	case c.Serial.Device == "":
		return fmt.Errorf("%w: serial.device is empty", ErrInvalid)
	case c.Serial.Baud <= 0:
		return fmt.Errorf("%w: serial.baud must be positive", ErrInvalid)
	case c.Serial.ReadTimeout <= 0:
		return fmt.Errorf("%w: serial.read_timeout must be positive", ErrInvalid)
	case c.Engine.QueueSize <= 0:
		return fmt.Errorf("%w: engine.queue_size must be positive", ErrInvalid)
	case c.Engine.PollInterval <= 0:
		return fmt.Errorf("%w: engine.poll_interval must be positive", ErrInvalid)
	case c.Engine.HandshakeRetry <= 0:
		return fmt.Errorf("%w: engine.handshake_retry must be positive", ErrInvalid)
	case c.Engine.HeartbeatInterval < 0:
		return fmt.Errorf("%w: engine.heartbeat_interval is negative", ErrInvalid)
	case c.Engine.StatusInterval < 0:
		return fmt.Errorf("%w: engine.status_interval is negative", ErrInvalid)
	case len(c.Engine.EchoMessage) > protocol.MaxPayloadSize:
		return fmt.Errorf("%w: engine.echo_message exceeds %d bytes", ErrInvalid, protocol.MaxPayloadSize)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// SerialPort returns the port settings
func (c Config) SerialPort() *serial.Config {
	return &serial.Config{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeout,
	}
}

// EngineConfig returns the protocol engine settings. Logger and metrics are
// filled in by the caller.
func (c Config) EngineConfig() simpit.Config {
	cfg := simpit.DefaultConfig()
	cfg.QueueSize = c.Engine.QueueSize
	cfg.PollInterval = c.Engine.PollInterval
	cfg.HandshakeRetry = c.Engine.HandshakeRetry
	cfg.HeartbeatInterval = c.Engine.HeartbeatInterval
	cfg.EchoMessage = c.Engine.EchoMessage
	cfg.Channels = c.Engine.Channels
	return cfg
}
