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
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/travisjeffery/go-dynaport"
	"go.etcd.io/etcd/client/pkg/v3/types"

	"github.com/tochemey/etcdclient/internal/validation"
	"github.com/tochemey/etcdclient/log"
)

// DefaultStartTimeout bounds how long Start waits for the member to be ready
const DefaultStartTimeout = 30 * time.Second

// Config defines the embedded member settings
type Config struct {
	name         string
	dataDir      string
	clientURLs   types.URLs
	peerURLs     types.URLs
	startTimeout time.Duration
	logLevel     string
	logger       log.Logger
}

var _ validation.Validator = (*Config)(nil)

// NewConfig creates a Config listening on free loopback ports with its data
// kept in a fresh temporary directory
func NewConfig(name string, opts ...Option) (*Config, error) {
	ports := dynaport.Get(2)
	clientURLs, err := types.NewURLs([]string{fmt.Sprintf("http://127.0.0.1:%d", ports[0])})
	if err != nil {
		return nil, err
	}
	peerURLs, err := types.NewURLs([]string{fmt.Sprintf("http://127.0.0.1:%d", ports[1])})
	if err != nil {
		return nil, err
	}

	config := &Config{
		name:         name,
		clientURLs:   clientURLs,
		peerURLs:     peerURLs,
		startTimeout: DefaultStartTimeout,
		logLevel:     "error",
		logger:       log.DiscardLogger,
	}

	for _, opt := range opts {
		opt.Apply(config)
	}

	if config.dataDir == "" {
		dir, err := os.MkdirTemp("", "etcd-"+name+"-")
		if err != nil {
			return nil, fmt.Errorf("failed to create the data directory: %w", err)
		}
		config.dataDir = dir
	}
	return config, nil
}

// Name returns the member name
func (c *Config) Name() string {
	return c.name
}

// DataDir returns the member data directory
func (c *Config) DataDir() string {
	return c.dataDir
}

// ClientURLs returns the URLs clients connect to
func (c *Config) ClientURLs() []url.URL {
	return c.clientURLs
}

// PeerURLs returns the URLs peers connect to
func (c *Config) PeerURLs() []url.URL {
	return c.peerURLs
}

// StartTimeout returns the readiness deadline
func (c *Config) StartTimeout() time.Duration {
	return c.startTimeout
}

// Logger returns the configured logger
func (c *Config) Logger() log.Logger {
	return c.logger
}

// Validate checks the settings
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("name", c.name)).
		AddValidator(validation.NewEmptyStringValidator("dataDir", c.dataDir)).
		AddAssertion(len(c.clientURLs) > 0, "client URLs are required").
		AddAssertion(len(c.peerURLs) > 0, "peer URLs are required").
		AddAssertion(c.startTimeout > 0, "startTimeout must be greater than 0").
		Validate()
}
