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
	"strconv"

	"google.golang.org/grpc/codes"
)

// Code identifies the outcome of an action.
type Code int

// gRPC status codes passed through from the transport.
const (
	OK                 = Code(codes.OK)
	Canceled           = Code(codes.Canceled)
	Unknown            = Code(codes.Unknown)
	InvalidArgument    = Code(codes.InvalidArgument)
	DeadlineExceeded   = Code(codes.DeadlineExceeded)
	NotFound           = Code(codes.NotFound)
	AlreadyExists      = Code(codes.AlreadyExists)
	PermissionDenied   = Code(codes.PermissionDenied)
	ResourceExhausted  = Code(codes.ResourceExhausted)
	FailedPrecondition = Code(codes.FailedPrecondition)
	Aborted            = Code(codes.Aborted)
	OutOfRange         = Code(codes.OutOfRange)
	Unimplemented      = Code(codes.Unimplemented)
	Internal           = Code(codes.Internal)
	Unavailable        = Code(codes.Unavailable)
	DataLoss           = Code(codes.DataLoss)
	Unauthenticated    = Code(codes.Unauthenticated)
)

// Domain codes synthesized by the client after inspecting a successful reply.
const (
	KeyNotFound      Code = 100
	CompareFailed    Code = 101
	KeyAlreadyExists Code = 105
	ActionCancelled  Code = 106
)

// IsTransport reports whether the code is a gRPC status code.
func (c Code) IsTransport() bool {
	return c >= OK && c <= Unauthenticated
}

// IsDomain reports whether the code was synthesized by the client.
func (c Code) IsDomain() bool {
	return c >= KeyNotFound
}

// String returns the code name
func (c Code) String() string {
	switch c {
	case KeyNotFound:
		return "key not found"
	case CompareFailed:
		return "compare failed"
	case KeyAlreadyExists:
		return "key already exists"
	case ActionCancelled:
		return "action cancelled"
	}
	if c.IsTransport() {
		return codes.Code(c).String()
	}
	return "code(" + strconv.Itoa(int(c)) + ")"
}
