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

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	actionCounterName           = "etcdclient.actions.count"
	actionFailureCounterName    = "etcdclient.actions.failures"
	actionDurationHistogramName = "etcdclient.actions.duration"
	activeStreamsCounterName    = "etcdclient.streams.active"

	// ActionKey is the attribute holding the action name
	ActionKey = attribute.Key("etcd.action")
	// CodeKey is the attribute holding the action outcome code
	CodeKey = attribute.Key("etcd.code")
)

// Metrics holds the client instruments
type Metrics struct {
	ActionCount       metric.Int64Counter
	ActionFailures    metric.Int64Counter
	ActionDuration    metric.Float64Histogram
	ActiveStreamCount metric.Int64UpDownCounter
}

// NewMetrics creates the client instruments on the given meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	metrics := new(Metrics)
	var err error

	if metrics.ActionCount, err = meter.Int64Counter(
		actionCounterName,
		metric.WithDescription("The total number of completed actions"),
	); err != nil {
		return nil, fmt.Errorf("failed to create action count instrument, %w", err)
	}

	if metrics.ActionFailures, err = meter.Int64Counter(
		actionFailureCounterName,
		metric.WithDescription("The total number of actions completed with an error"),
	); err != nil {
		return nil, fmt.Errorf("failed to create action failure instrument, %w", err)
	}

	if metrics.ActionDuration, err = meter.Float64Histogram(
		actionDurationHistogramName,
		metric.WithDescription("The latency of actions in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create action latency instrument, %w", err)
	}

	if metrics.ActiveStreamCount, err = meter.Int64UpDownCounter(
		activeStreamsCounterName,
		metric.WithDescription("The number of open watch, keepalive and observe streams"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active streams instrument, %w", err)
	}

	return metrics, nil
}

// RecordAction records the completion of an action
func (m *Metrics) RecordAction(ctx context.Context, action string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(ActionKey.String(action), CodeKey.Int(code))
	m.ActionCount.Add(ctx, 1, attrs)
	if code != 0 {
		m.ActionFailures.Add(ctx, 1, attrs)
	}
	m.ActionDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond), metric.WithAttributes(ActionKey.String(action)))
}

// StreamOpened increments the active streams counter
func (m *Metrics) StreamOpened(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.ActiveStreamCount.Add(ctx, 1, metric.WithAttributes(ActionKey.String(action)))
}

// StreamClosed decrements the active streams counter
func (m *Metrics) StreamClosed(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.ActiveStreamCount.Add(ctx, -1, metric.WithAttributes(ActionKey.String(action)))
}
