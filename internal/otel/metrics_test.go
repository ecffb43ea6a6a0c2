package otel

import (
	"context"
	"testing"
)

func TestNewMetrics_AllInstrumentsCreated(t *testing.T) {
	p, err := Init(context.Background(), Config{
		Enabled:  true,
		Exporter: "none",
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	if m.RequestDuration == nil {
		t.Error("RequestDuration is nil")
	}
	if m.APIRetries == nil {
		t.Error("APIRetries is nil")
	}
	if m.RefetchCount == nil {
		t.Error("RefetchCount is nil")
	}
	if m.RefetchThrottles == nil {
		t.Error("RefetchThrottles is nil")
	}
	if m.DedupDrops == nil {
		t.Error("DedupDrops is nil")
	}
	if m.ReconnectAttempts == nil {
		t.Error("ReconnectAttempts is nil")
	}
	if m.PushDeliveries == nil {
		t.Error("PushDeliveries is nil")
	}
	if m.SessionTeardowns == nil {
		t.Error("SessionTeardowns is nil")
	}
}

func TestNewMetrics_NoopMeter(t *testing.T) {
	// Disabled OTel returns noop meter; metrics should still create without error.
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics with noop: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Metrics")
	}
}

func TestEngineMetrics_CountersIncrement(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatal(err)
	}
	em := EngineMetrics{M: m}
	// Noop instruments: this just verifies none of the adapters panic.
	em.RefetchPerformed()
	em.RefetchThrottled()
	em.DuplicateDropped()
	em.ReconnectAttempt()
}
