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

// Package errorschain runs a sequence of steps and reports their errors
package errorschain

import "go.uber.org/multierr"

// Chain defines an error chain
type Chain struct {
	returnFirst bool
	steps       []func() error
}

// ChainOption configures a chain at creation time.
type ChainOption func(*Chain)

// New creates a new error chain. Errors are evaluated in insertion order.
func New(opts ...ChainOption) *Chain {
	chain := &Chain{
		steps: make([]func() error, 0),
	}

	for _, opt := range opts {
		opt(chain)
	}

	return chain
}

// AddError adds an already computed error to the chain
func (c *Chain) AddError(err error) *Chain {
	c.steps = append(c.steps, func() error { return err })
	return c
}

// AddErrorFn adds a step evaluated when Error is called. With ReturnFirst,
// steps after the first failing one never run.
func (c *Chain) AddErrorFn(fn func() error) *Chain {
	c.steps = append(c.steps, fn)
	return c
}

// AddErrorFns adds several steps. Order matters.
func (c *Chain) AddErrorFns(fns ...func() error) *Chain {
	c.steps = append(c.steps, fns...)
	return c
}

// Error runs the chain and returns the first error or all of them combined
func (c *Chain) Error() error {
	var err error
	for _, step := range c.steps {
		if e := step(); e != nil {
			if c.returnFirst {
				return e
			}
			err = multierr.Append(err, e)
		}
	}
	return err
}

// ReturnFirst stops the chain at the first error.
func ReturnFirst() ChainOption {
	return func(c *Chain) { c.returnFirst = true }
}

// ReturnAll runs every step and combines the errors.
func ReturnAll() ChainOption {
	return func(c *Chain) { c.returnFirst = false }
}
