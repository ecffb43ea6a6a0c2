package otel

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all Taskwire metrics instruments.
type Metrics struct {
	RequestDuration   metric.Float64Histogram
	APIRetries        metric.Int64Counter
	RefetchCount      metric.Int64Counter
	RefetchThrottles  metric.Int64Counter
	DedupDrops        metric.Int64Counter
	ReconnectAttempts metric.Int64Counter
	PushDeliveries    metric.Int64Counter
	SessionTeardowns  metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RequestDuration, err = meter.Float64Histogram("taskwire.request.duration",
		metric.WithDescription("API request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.APIRetries, err = meter.Int64Counter("taskwire.request.retries",
		metric.WithDescription("API requests retried after transport failure"),
	)
	if err != nil {
		return nil, err
	}

	m.RefetchCount, err = meter.Int64Counter("taskwire.sync.refetches",
		metric.WithDescription("Refetches performed by the sync engine"),
	)
	if err != nil {
		return nil, err
	}

	m.RefetchThrottles, err = meter.Int64Counter("taskwire.sync.refetch_throttled",
		metric.WithDescription("Refetches collapsed by the throttle window"),
	)
	if err != nil {
		return nil, err
	}

	m.DedupDrops, err = meter.Int64Counter("taskwire.sync.dedup_drops",
		metric.WithDescription("Duplicate realtime events dropped"),
	)
	if err != nil {
		return nil, err
	}

	m.ReconnectAttempts, err = meter.Int64Counter("taskwire.socket.reconnects",
		metric.WithDescription("Socket reconnect attempts"),
	)
	if err != nil {
		return nil, err
	}

	m.PushDeliveries, err = meter.Int64Counter("taskwire.push.deliveries",
		metric.WithDescription("Push messages delivered to channels"),
	)
	if err != nil {
		return nil, err
	}

	m.SessionTeardowns, err = meter.Int64Counter("taskwire.session.teardowns",
		metric.WithDescription("Sessions torn down after an auth rejection"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// EngineMetrics adapts Metrics to the sync engine's counter sink.
type EngineMetrics struct {
	M *Metrics
}

func (e EngineMetrics) RefetchPerformed() {
	e.M.RefetchCount.Add(context.Background(), 1)
}

func (e EngineMetrics) RefetchThrottled() {
	e.M.RefetchThrottles.Add(context.Background(), 1)
}

func (e EngineMetrics) DuplicateDropped() {
	e.M.DedupDrops.Add(context.Background(), 1)
}

func (e EngineMetrics) ReconnectAttempt() {
	e.M.ReconnectAttempts.Add(context.Background(), 1)
}
