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
	"fmt"
	"time"
)

// durationValidator checks a duration lies in [lower, upper]. A zero upper means no upper bound.
type durationValidator struct {
	field string
	value time.Duration
	lower time.Duration
	upper time.Duration
}

var _ Validator = (*durationValidator)(nil)

// NewDurationValidator creates a validator for a duration setting
func NewDurationValidator(field string, value, lower, upper time.Duration) Validator {
	return &durationValidator{field: field, value: value, lower: lower, upper: upper}
}

// Validate implements Validator.
func (v *durationValidator) Validate() error {
	if v.value < v.lower {
		return fmt.Errorf("the [%s] must be at least %s, got %s", v.field, v.lower, v.value)
	}
	if v.upper > 0 && v.value > v.upper {
		return fmt.Errorf("the [%s] must be at most %s, got %s", v.field, v.upper, v.value)
	}
	return nil
}
