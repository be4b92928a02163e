// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package client

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/internal/grpcc"
	"github.com/tochemey/etcdclient/internal/validation"
	"github.com/tochemey/etcdclient/log"
	"github.com/tochemey/etcdclient/telemetry"
)

const (
	// DefaultDialTimeout bounds the initial connection
	DefaultDialTimeout = 5 * time.Second
	// DefaultLockTTL is the TTL of the lease granted for a lock acquired without one
	DefaultLockTTL = 10 * time.Second
	// DefaultStreamGrace bounds each step of a stream close sequence
	DefaultStreamGrace = time.Second
	// DefaultAuthRetries is the number of authentication attempts made at startup
	DefaultAuthRetries = 3
)

// Config defines the client configuration.
//
// Endpoints are host:port pairs, optionally prefixed with http:// or https://.
// Several endpoints are balanced round robin over a single connection.
type Config struct {
	endpoints        []string
	dialTimeout      time.Duration
	timeout          time.Duration
	keepAliveTime    time.Duration
	keepAliveTimeout time.Duration
	username         string
	password         string
	authRetries      int
	tlsConfig        *tls.Config
	maxCallMsgSize   int
	compression      bool
	lockTTL          time.Duration
	streamGrace      time.Duration
	logger           log.Logger
	telemetry        *telemetry.Telemetry
}

var _ validation.Validator = (*Config)(nil)

// NewConfig returns a Config for the given endpoints with the defaults applied
// and then the given options.
func NewConfig(endpoints []string, opts ...Option) *Config {
	cfg := &Config{
		endpoints:        append([]string(nil), endpoints...),
		dialTimeout:      DefaultDialTimeout,
		keepAliveTime:    grpcc.DefaultKeepAliveTime,
		keepAliveTimeout: grpcc.DefaultKeepAliveTimeout,
		authRetries:      DefaultAuthRetries,
		maxCallMsgSize:   grpcc.DefaultMaxCallMsgSize,
		lockTTL:          DefaultLockTTL,
		streamGrace:      DefaultStreamGrace,
		logger:           log.DiscardLogger,
	}

	for _, opt := range opts {
		opt.Apply(cfg)
	}

	return cfg
}

// Endpoints returns the configured endpoints
func (x *Config) Endpoints() []string {
	return append([]string(nil), x.endpoints...)
}

// DialTimeout returns how long New waits for the connection to be ready
func (x *Config) DialTimeout() time.Duration {
	return x.dialTimeout
}

// Timeout returns the default per-call timeout. Zero means no timeout.
func (x *Config) Timeout() time.Duration {
	return x.timeout
}

// KeepAliveTime returns the transport ping interval
func (x *Config) KeepAliveTime() time.Duration {
	return x.keepAliveTime
}

// KeepAliveTimeout returns how long a transport ping may stay unanswered
func (x *Config) KeepAliveTimeout() time.Duration {
	return x.keepAliveTimeout
}

// Username returns the user authenticated at startup
func (x *Config) Username() string {
	return x.username
}

// Password returns the password of the user authenticated at startup
func (x *Config) Password() string {
	return x.password
}

// AuthRetries returns the number of authentication attempts
func (x *Config) AuthRetries() int {
	return x.authRetries
}

// TLS returns the TLS configuration. Nil means plaintext.
func (x *Config) TLS() *tls.Config {
	return x.tlsConfig
}

// MaxCallMsgSize returns the maximum request and reply size
func (x *Config) MaxCallMsgSize() int {
	return x.maxCallMsgSize
}

// Compression reports whether requests are gzip compressed
func (x *Config) Compression() bool {
	return x.compression
}

// LockTTL returns the TTL of the lease granted for a lock acquired without one
func (x *Config) LockTTL() time.Duration {
	return x.lockTTL
}

// StreamGrace returns the bound of each step of a stream close sequence
func (x *Config) StreamGrace() time.Duration {
	return x.streamGrace
}

// Logger returns the logger
func (x *Config) Logger() log.Logger {
	return x.logger
}

// Telemetry returns the telemetry settings
func (x *Config) Telemetry() *telemetry.Telemetry {
	return x.telemetry
}

// Sanitize trims the endpoints and restores defaults for unset settings
func (x *Config) Sanitize() error {
	endpoints := x.endpoints[:0]
	for _, endpoint := range x.endpoints {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			endpoints = append(endpoints, endpoint)
		}
	}
	x.endpoints = endpoints

	if x.dialTimeout <= 0 {
		x.dialTimeout = DefaultDialTimeout
	}
	if x.maxCallMsgSize <= 0 {
		x.maxCallMsgSize = grpcc.DefaultMaxCallMsgSize
	}
	if x.streamGrace <= 0 {
		x.streamGrace = DefaultStreamGrace
	}
	if x.authRetries <= 0 {
		x.authRetries = DefaultAuthRetries
	}
	if x.logger == nil {
		x.logger = log.DiscardLogger
	}
	if x.telemetry == nil {
		x.telemetry = telemetry.New()
	}
	return nil
}

// Validate checks the configuration
func (x *Config) Validate() error {
	return x.validate(true)
}

// validate checks the configuration. Endpoints are not required when the
// client is built over an existing connection.
func (x *Config) validate(requireEndpoints bool) error {
	chain := validation.New(validation.FailFast())
	if requireEndpoints {
		chain = chain.AddValidator(validation.NewBooleanValidator(len(x.endpoints) > 0, errors.ErrNoEndpoints))
		for _, endpoint := range x.endpoints {
			chain = chain.AddValidator(validation.NewEndpointValidator(endpoint))
		}
	}

	return chain.
		AddValidator(validation.NewDurationValidator("lockTTL", x.lockTTL, time.Second, 0)).
		AddAssertion(x.dialTimeout > 0, "dialTimeout must be greater than 0").
		AddAssertion(x.timeout >= 0, "timeout must not be negative").
		AddAssertion(x.keepAliveTime >= 0, "keepAliveTime must not be negative").
		AddAssertion(x.keepAliveTimeout >= 0, "keepAliveTimeout must not be negative").
		AddAssertion(x.password == "" || x.username != "", "a password requires a username").
		AddAssertion(x.maxCallMsgSize > 0, "maxCallMsgSize must be greater than 0").
		AddAssertion(x.streamGrace > 0, "streamGrace must be greater than 0").
		Validate()
}
