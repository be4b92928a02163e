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

package validation

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// EndpointValidator checks a host:port endpoint, optionally prefixed
// with an http:// or https:// scheme.
type EndpointValidator struct {
	endpoint string
}

var _ Validator = (*EndpointValidator)(nil)

// NewEndpointValidator creates an EndpointValidator
func NewEndpointValidator(endpoint string) *EndpointValidator {
	return &EndpointValidator{endpoint: endpoint}
}

// Validate implements Validator.
func (v *EndpointValidator) Validate() error {
	address := strings.TrimSpace(v.endpoint)
	address = strings.TrimPrefix(address, "http://")
	address = strings.TrimPrefix(address, "https://")

	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid endpoint=(%s): %w", v.endpoint, err)
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid endpoint=(%s): %w", v.endpoint, err)
	}

	if host == "" || portNum <= 0 || portNum > 65535 {
		return fmt.Errorf("invalid endpoint=(%s): %w", v.endpoint, errors.New("host and port are required"))
	}
	return nil
}
