// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/cn105/pkg/heatpump"
)

// Config represents the overall application configuration.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Engine    EngineConfig    `yaml:"engine"`
	Server    ServerConfig    `yaml:"server"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`
}

// SerialConfig selects the local UART.
type SerialConfig struct {
	Port string `yaml:"port"`
}

// WebSocketConfig selects a remote serial bridge instead of a local port.
type WebSocketConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

// EngineConfig holds the protocol timing. Durations are given in milliseconds
// or seconds in the file and converted on Load.
type EngineConfig struct {
	BaudRate           int  `yaml:"baud_rate"`
	FallbackBaudRate   int  `yaml:"fallback_baud_rate"`
	SendIntervalMS     int  `yaml:"send_interval_ms"`
	InfoIntervalMS     int  `yaml:"info_interval_ms"`
	ReplyTimeoutMS     int  `yaml:"reply_timeout_ms"`
	ReconnectAfter     int  `yaml:"reconnect_after"`
	GracePeriodSeconds int  `yaml:"grace_period_seconds"`
	AutoUpdate         bool `yaml:"auto_update"`
	ExternalUpdate     bool `yaml:"external_update"`
	FastSync           bool `yaml:"fast_sync"`

	SendInterval time.Duration `yaml:"-"`
	InfoInterval time.Duration `yaml:"-"`
	ReplyTimeout time.Duration `yaml:"-"`
	GracePeriod  time.Duration `yaml:"-"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Addr            string  `yaml:"addr"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	SyncIntervalMS  int     `yaml:"sync_interval_ms"`

	CacheTTL     time.Duration `yaml:"-"`
	SyncInterval time.Duration `yaml:"-"`
}

// HistoryConfig holds the database the change history is recorded to.
type HistoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Driver       string `yaml:"driver"` // sqlite or postgres
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// LogConfig holds the log level name.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	defaults := heatpump.DefaultOptions()

	e := &c.Engine
	if e.BaudRate <= 0 {
		e.BaudRate = defaults.BaudRate
	}
	if e.FallbackBaudRate <= 0 {
		e.FallbackBaudRate = defaults.FallbackBaudRate
	}
	if e.SendIntervalMS <= 0 {
		e.SendIntervalMS = int(defaults.SendInterval / time.Millisecond)
	}
	if e.InfoIntervalMS <= 0 {
		e.InfoIntervalMS = int(defaults.InfoInterval / time.Millisecond)
	}
	if e.ReplyTimeoutMS <= 0 {
		e.ReplyTimeoutMS = int(defaults.ReplyTimeout / time.Millisecond)
	}
	if e.ReconnectAfter <= 0 {
		e.ReconnectAfter = defaults.ReconnectAfter
	}
	if e.GracePeriodSeconds <= 0 {
		e.GracePeriodSeconds = int(defaults.GracePeriod / time.Second)
	}
	e.SendInterval = time.Duration(e.SendIntervalMS) * time.Millisecond
	e.InfoInterval = time.Duration(e.InfoIntervalMS) * time.Millisecond
	e.ReplyTimeout = time.Duration(e.ReplyTimeoutMS) * time.Millisecond
	e.GracePeriod = time.Duration(e.GracePeriodSeconds) * time.Second

	s := &c.Server
	if s.Addr == "" {
		s.Addr = ":8080"
	}
	if s.RateLimitPerSec <= 0 {
		s.RateLimitPerSec = 10
	}
	if s.RateLimitBurst <= 0 {
		s.RateLimitBurst = 5
	}
	if s.CacheTTLSeconds <= 0 {
		s.CacheTTLSeconds = 30
	}
	if s.SyncIntervalMS <= 0 {
		s.SyncIntervalMS = 250
	}
	s.CacheTTL = time.Duration(s.CacheTTLSeconds) * time.Second
	s.SyncInterval = time.Duration(s.SyncIntervalMS) * time.Millisecond

	h := &c.History
	if h.Driver == "" {
		h.Driver = "sqlite"
	}
	if h.Driver != "sqlite" && h.Driver != "postgres" {
		return fmt.Errorf("history.driver must be sqlite or postgres, got %q", h.Driver)
	}
	if h.DSN == "" && h.Driver == "sqlite" {
		h.DSN = "cn105-history.db"
	}
	if h.MaxOpenConns <= 0 {
		h.MaxOpenConns = 4
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 2
	}

	if c.Log.Level == "" {
		c.Log.Level = "off"
	}
	return nil
}

// Options converts the engine section to engine options.
func (e EngineConfig) Options() heatpump.Options {
	opts := heatpump.DefaultOptions()
	opts.BaudRate = e.BaudRate
	opts.FallbackBaudRate = e.FallbackBaudRate
	opts.SendInterval = e.SendInterval
	opts.InfoInterval = e.InfoInterval
	opts.ReplyTimeout = e.ReplyTimeout
	opts.ReconnectAfter = e.ReconnectAfter
	opts.GracePeriod = e.GracePeriod
	opts.AutoUpdate = e.AutoUpdate
	opts.ExternalUpdate = e.ExternalUpdate
	opts.FastSync = e.FastSync
	return opts
}
