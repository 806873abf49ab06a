package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/connrelay/internal/relay"
)

type fileConfig struct {
	ListenAddr      string `toml:"listen_addr"`
	MailboxCapacity int    `toml:"mailbox_capacity"`
	LeaseTimeout    string `toml:"lease_timeout"`
	Dialer          string `toml:"dialer"`
	DialTimeout     string `toml:"dial_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	RequestTimeout  string `toml:"request_timeout"`
	MaxPayloadBytes uint32 `toml:"max_payload_bytes"`
	MaxConnections  int64  `toml:"max_connections"`
}

func loadServiceConfig(path string) (relay.ServiceConfig, error) {
	cfg := relay.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return relay.ServiceConfig{}, fmt.Errorf("load relayd config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return relay.ServiceConfig{}, fmt.Errorf("load relayd config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen_addr") {
		if addr := strings.TrimSpace(raw.ListenAddr); addr != "" {
			cfg.ListenAddr = addr
		}
	}

	if meta.IsDefined("mailbox_capacity") {
		if raw.MailboxCapacity <= 0 {
			return relay.ServiceConfig{}, fmt.Errorf("mailbox_capacity must be positive: %d", raw.MailboxCapacity)
		}
		cfg.MailboxCapacity = raw.MailboxCapacity
	}

	if meta.IsDefined("dialer") {
		cfg.Dialer = strings.ToLower(strings.TrimSpace(raw.Dialer))
		if cfg.Dialer != relay.DialerLoopback && cfg.Dialer != relay.DialerTCP {
			return relay.ServiceConfig{}, fmt.Errorf("%w: %q", relay.ErrUnknownDialer, raw.Dialer)
		}
	}

	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes == 0 {
			return relay.ServiceConfig{}, fmt.Errorf("max_payload_bytes must be positive")
		}
		cfg.Server.Limits.MaxPayloadBytes = raw.MaxPayloadBytes
	}

	if meta.IsDefined("max_connections") {
		if raw.MaxConnections <= 0 {
			return relay.ServiceConfig{}, fmt.Errorf("max_connections must be positive: %d", raw.MaxConnections)
		}
		cfg.Server.MaxConnections = raw.MaxConnections
	}

	durations := []struct {
		key  string
		raw  string
		dst  *time.Duration
		zero bool
	}{
		{"lease_timeout", raw.LeaseTimeout, &cfg.LeaseTimeout, true},
		{"dial_timeout", raw.DialTimeout, &cfg.DialTimeout, false},
		{"shutdown_timeout", raw.ShutdownTimeout, &cfg.ShutdownTimeout, false},
		{"read_timeout", raw.ReadTimeout, &cfg.Server.ReadTimeout, false},
		{"write_timeout", raw.WriteTimeout, &cfg.Server.WriteTimeout, false},
		{"request_timeout", raw.RequestTimeout, &cfg.Server.RequestTimeout, false},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return relay.ServiceConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		if v < 0 || (v == 0 && !d.zero) {
			return relay.ServiceConfig{}, fmt.Errorf("%s must be positive: %s", d.key, d.raw)
		}
		*d.dst = v
	}

	return cfg, nil
}
