package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var (
	ErrAddrRequired    = errors.New("config: addr required")
	ErrInvalidChunk    = errors.New("config: read_chunk must be positive")
	ErrInvalidInterval = errors.New("config: poll_interval must be positive")
)

// ClientConfig drives one probectl connection.
type ClientConfig struct {
	Addr            string
	ConnectTimeout  time.Duration
	PollInterval    time.Duration
	ReadChunk       int
	MaxAuthBytes    uint64
	MaxPayloadBytes uint64
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout:  5 * time.Second,
		PollInterval:    time.Millisecond,
		ReadChunk:       4096,
		MaxAuthBytes:    64 * 1024,
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

type fileConfig struct {
	Addr            string `toml:"addr"`
	ConnectTimeout  string `toml:"connect_timeout"`
	PollInterval    string `toml:"poll_interval"`
	ReadChunk       int    `toml:"read_chunk"`
	MaxAuthBytes    uint64 `toml:"max_auth_bytes"`
	MaxPayloadBytes uint64 `toml:"max_payload_bytes"`
}

// LoadClientConfig reads path, overlays it on the defaults, and validates
// the result.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg, err := ReadClientConfig(path)
	if err != nil {
		return ClientConfig{}, err
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// ReadClientConfig reads path and overlays it on the defaults without
// validating; absent keys keep their default values. Callers that apply
// overrides afterwards validate the final shape themselves.
func ReadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.ConnectTimeout = d
	}
	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if meta.IsDefined("read_chunk") {
		cfg.ReadChunk = raw.ReadChunk
	}
	if meta.IsDefined("max_auth_bytes") {
		cfg.MaxAuthBytes = raw.MaxAuthBytes
	}
	if meta.IsDefined("max_payload_bytes") {
		cfg.MaxPayloadBytes = raw.MaxPayloadBytes
	}

	return cfg, nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return ErrAddrRequired
	}
	if cfg.ReadChunk <= 0 {
		return ErrInvalidChunk
	}
	if cfg.PollInterval <= 0 {
		return ErrInvalidInterval
	}
	return nil
}
