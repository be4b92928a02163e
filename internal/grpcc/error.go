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

package grpcc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrEmptyAddress = errors.New("empty address")
)

// Error is an error carrying a gRPC status code.
// Returned from a service method it reaches the caller as that code.
//
//	return nil, NewError(codes.NotFound, fmt.Errorf("lease %x not found", id))
type Error struct {
	code       codes.Code
	underlying error
}

// NewError creates an Error. underlying may be nil.
func NewError(code codes.Code, underlying error) *Error {
	return &Error{
		code:       code,
		underlying: underlying,
	}
}

// Error returns the underlying message
func (e *Error) Error() string {
	if e.underlying != nil {
		return e.underlying.Error()
	}
	return "unknown grpc error"
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.underlying
}

// GRPCStatus makes Error usable as a status error
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.code, e.Error())
}

// Code returns the status code
func (e *Error) Code() codes.Code {
	return e.code
}

// codesFromContext maps a finished context to its status code
func codesFromContext(ctx context.Context) codes.Code {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	if ctx.Err() != nil {
		return codes.Canceled
	}
	return codes.Unavailable
}
