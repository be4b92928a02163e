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

package embedded

import (
	"time"

	"github.com/tochemey/etcdclient/log"
)

// Option configures an embedded member
type Option interface {
	// Apply sets the Option value of a config.
	Apply(config *Config)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(config *Config)

// Apply applies the option to the config
func (f OptionFunc) Apply(config *Config) {
	f(config)
}

// WithDataDir stores the member data under dir instead of a temporary directory
func WithDataDir(dir string) Option {
	return OptionFunc(func(config *Config) {
		config.dataDir = dir
	})
}

// WithStartTimeout sets how long Start waits for the member to be ready
func WithStartTimeout(timeout time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.startTimeout = timeout
	})
}

// WithLogLevel sets the level of the etcd server logs
func WithLogLevel(level string) Option {
	return OptionFunc(func(config *Config) {
		config.logLevel = level
	})
}

// WithLogger sets the logger reporting the member lifecycle
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(config *Config) {
		config.logger = logger
	})
}
