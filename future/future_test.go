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

package future

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestFuture(t *testing.T) {
	t.Run("With successful completion", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := New(context.Background(), func(context.Context) (string, error) {
			return "value", nil
		})

		value, err := f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "value", value)

		// awaiting twice yields the same result
		value, err = f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "value", value)
	})
	t.Run("With failure", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		expected := errors.New("boom")
		f := New(context.Background(), func(context.Context) (int, error) {
			return 0, expected
		})
		_, err := f.Await(context.Background())
		require.ErrorIs(t, err, expected)
	})
	t.Run("With panic", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := New(context.Background(), func(context.Context) (int, error) {
			panic("nope")
		})
		_, err := f.Await(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope")
	})
	t.Run("With await context expiring first", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		release := make(chan struct{})
		f := New(context.Background(), func(context.Context) (int, error) {
			<-release
			return 1, nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := f.Await(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		close(release)
		<-f.Done()
		value, err := f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, value)
	})
	t.Run("With cancellation", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := New(context.Background(), func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		f.Cancel()
		_, err := f.Await(context.Background())
		require.ErrorIs(t, err, context.Canceled)
	})
	t.Run("With completed future", func(t *testing.T) {
		f := Completed(3, nil)
		value, err := f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, value)
		f.Cancel()
	})
	t.Run("AwaitAll keeps order", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		slow := New(context.Background(), func(context.Context) (int, error) {
			time.Sleep(10 * time.Millisecond)
			return 1, nil
		})
		fast := Completed(2, nil)
		values, err := AwaitAll(context.Background(), slow, fast)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, values)

		_, err = AwaitAll(context.Background(), fast, Completed(0, errors.New("x")))
		require.Error(t, err)
	})
}
