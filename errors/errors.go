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

package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrKeyNotFound is returned when a single-key read, update or delete
	// does not match any key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrCompareFailed is returned when the compare condition of a
	// compare-and-swap, compare-and-delete or user transaction does not hold.
	ErrCompareFailed = errors.New("compare failed")

	// ErrKeyAlreadyExists is returned when creating a key that is already present.
	ErrKeyAlreadyExists = errors.New("key already exists")

	// ErrActionCancelled is returned when an action or stream has been cancelled
	// locally, or when its stream could not be driven to completion.
	ErrActionCancelled = errors.New("action cancelled")

	// ErrTransactionConsumed is returned when a transaction request is handed over more than once.
	ErrTransactionConsumed = errors.New("transaction already consumed")

	// ErrClientClosed is returned when an operation is issued on a closed client.
	ErrClientClosed = errors.New("client is closed")

	// ErrNoEndpoints is returned when the client configuration does not list any endpoint.
	ErrNoEndpoints = errors.New("no endpoints provided")

	// ErrInvalidTTL is returned when a lease TTL is not strictly positive.
	ErrInvalidTTL = errors.New("lease TTL must be greater than zero")

	// ErrInvalidInterval is returned when a keepalive interval is not strictly positive.
	ErrInvalidInterval = errors.New("keepalive interval must be greater than zero")

	// ErrSchedulerClosed is returned when the keepalive scheduler has been stopped.
	ErrSchedulerClosed = errors.New("keepalive scheduler is closed")
)

// Error is the coded error carried by a failed response.
// Codes below 100 are the gRPC status codes passed through from the transport;
// codes from 100 upward are domain errors synthesized by the client.
type Error struct {
	code    Code
	message string
}

// enforce compilation error
var _ error = (*Error)(nil)

// New creates an instance of Error
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Code returns the error code
func (e *Error) Code() Code {
	return e.code
}

// Message returns the error message
func (e *Error) Message() string {
	return e.message
}

// Error implements the standard error interface
func (e *Error) Error() string {
	if e.message == "" {
		return fmt.Sprintf("etcd: %s", e.code)
	}
	return fmt.Sprintf("etcd: %s: %s", e.code, e.message)
}

// Is reports whether the target is the sentinel error matching this error's code,
// or another *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.code == e.code
	}

	if sentinel, ok := sentinels[e.code]; ok {
		return target == sentinel
	}
	return false
}

// GRPCStatus returns the gRPC status of a pass-through error.
// Domain errors are reported as codes.Unknown.
func (e *Error) GRPCStatus() *status.Status {
	if e.code.IsTransport() {
		return status.New(codes.Code(e.code), e.message)
	}
	return status.New(codes.Unknown, e.Error())
}

var sentinels = map[Code]error{
	KeyNotFound:      ErrKeyNotFound,
	CompareFailed:    ErrCompareFailed,
	KeyAlreadyExists: ErrKeyAlreadyExists,
	ActionCancelled:  ErrActionCancelled,
}
