package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	AttrOperation = attribute.Key("operation")
	AttrOutcome   = attribute.Key("outcome")
	AttrKind      = attribute.Key("kind")
)

// Outcome values recorded on routing metrics
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// RoutingMetrics records routing engine activity
type RoutingMetrics struct {
	transitions   metric.Int64Counter
	duration      metric.Float64Histogram
	notifications metric.Int64Counter
}

// NewRoutingMetrics creates the routing instruments on meter
func NewRoutingMetrics(meter metric.Meter) (*RoutingMetrics, error) {
	transitions, err := meter.Int64Counter(
		"disposisi_transitions_total",
		metric.WithDescription("Routing operations by outcome; the outcome is the error code on failure"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"disposisi_operation_duration_seconds",
		metric.WithDescription("Latency of routing operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	)
	if err != nil {
		return nil, err
	}

	notifications, err := meter.Int64Counter(
		"disposisi_notifications_total",
		metric.WithDescription("Notifier deliveries by kind and outcome"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	return &RoutingMetrics{
		transitions:   transitions,
		duration:      duration,
		notifications: notifications,
	}, nil
}

// RecordOperation records one routing operation. outcome is OutcomeSuccess or
// the domain error code of the failure.
func (m *RoutingMetrics) RecordOperation(ctx context.Context, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(operation), AttrOutcome.String(outcome)))
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(AttrOperation.String(operation)))
}

// RecordNotification records one notifier delivery attempt
func (m *RoutingMetrics) RecordNotification(ctx context.Context, kind string, delivered bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !delivered {
		outcome = OutcomeFailed
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(AttrKind.String(kind), AttrOutcome.String(outcome)))
}
