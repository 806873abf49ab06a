package relay

import (
	"time"

	"github.com/danmuck/connrelay/internal/protocol/frame"
)

const DefaultListenAddr = "127.0.0.1:7878"

// Dialer kinds accepted by ServiceConfig.Dialer.
const (
	DialerLoopback = "loopback"
	DialerTCP      = "tcp"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// RetryConfig bounds Retry. Attempts counts the first call.
type RetryConfig struct {
	Attempts int
	Backoff  BackoffConfig
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 1,
		Backoff: BackoffConfig{
			InitialDelay: 100 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     2 * time.Second,
			Jitter:       true,
		},
	}
}

// ClientConfig defines per-call transport bounds for Client.
type ClientConfig struct {
	Addr         string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Limits       frame.Limits
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Addr:         DefaultListenAddr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		Limits:       frame.DefaultLimits(),
	}
}

func (c ClientConfig) WithDefaults() ClientConfig {
	def := DefaultClientConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = def.Limits
	}
	return c
}

// ServerConfig defines per-connection bounds for Server.
type ServerConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxConnections int64
	Limits         frame.Limits
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		RequestTimeout: 10 * time.Second,
		MaxConnections: 128,
		Limits:         frame.DefaultLimits(),
	}
}

func (c ServerConfig) WithDefaults() ServerConfig {
	def := DefaultServerConfig()
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = def.MaxConnections
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = def.Limits
	}
	return c
}

// ServiceConfig configures relayd.
type ServiceConfig struct {
	ListenAddr      string
	MailboxCapacity int
	// LeaseTimeout reclaims checkouts held longer than this. Zero disables it.
	LeaseTimeout    time.Duration
	Dialer          string
	DialTimeout     time.Duration
	ShutdownTimeout time.Duration
	Server          ServerConfig
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:      DefaultListenAddr,
		MailboxCapacity: 64,
		LeaseTimeout:    5 * time.Minute,
		Dialer:          DialerLoopback,
		DialTimeout:     5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		Server:          DefaultServerConfig(),
	}
}
