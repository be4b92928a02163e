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
	"time"

	"github.com/tochemey/etcdclient/log"
	"github.com/tochemey/etcdclient/telemetry"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(*Config)
}

// enforce compilation error
var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(config *Config)

func (f OptionFunc) Apply(c *Config) {
	f(c)
}

// WithDialTimeout sets how long New waits for the connection to be ready
func WithDialTimeout(timeout time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.dialTimeout = timeout
	})
}

// WithDefaultTimeout sets the timeout of every call that does not set its own.
// Continuous streams ignore it.
func WithDefaultTimeout(timeout time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.timeout = timeout
	})
}

// WithKeepAlive sets the transport ping interval and how long a ping may stay unanswered
func WithKeepAlive(interval, timeout time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.keepAliveTime = interval
		config.keepAliveTimeout = timeout
	})
}

// WithAuth sets the user authenticated at startup. The token it yields is
// attached to every call.
func WithAuth(username, password string) Option {
	return OptionFunc(func(config *Config) {
		config.username = username
		config.password = password
	})
}

// WithAuthRetries sets the number of authentication attempts made at startup
func WithAuthRetries(retries int) Option {
	return OptionFunc(func(config *Config) {
		config.authRetries = retries
	})
}

// WithTLS enables TLS on the transport
func WithTLS(config *tls.Config) Option {
	return OptionFunc(func(cfg *Config) {
		cfg.tlsConfig = config
	})
}

// WithMaxCallMsgSize sets the maximum request and reply size
func WithMaxCallMsgSize(size int) Option {
	return OptionFunc(func(config *Config) {
		config.maxCallMsgSize = size
	})
}

// WithCompression gzip compresses every request. The server must accept
// gzip encoded messages.
func WithCompression() Option {
	return OptionFunc(func(config *Config) {
		config.compression = true
	})
}

// WithLockTTL sets the TTL of the lease granted for a lock acquired without one
func WithLockTTL(ttl time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.lockTTL = ttl
	})
}

// WithStreamGrace sets the bound of each step of a stream close sequence
func WithStreamGrace(grace time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.streamGrace = grace
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(config *Config) {
		config.logger = logger
	})
}

// WithTelemetry sets the tracer and meter used by the actions
func WithTelemetry(telemetry *telemetry.Telemetry) Option {
	return OptionFunc(func(config *Config) {
		config.telemetry = telemetry
	})
}
