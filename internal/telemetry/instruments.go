package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metric names.
const (
	MetricGateDecisions = "workledger.gate.decisions"
	MetricStoreSaves    = "workledger.store.saves"
)

// Instruments are the counters and tracer the workspace reports through.
type Instruments struct {
	tracer    trace.Tracer
	decisions metric.Int64Counter
	saves     metric.Int64Counter
}

// NewInstruments registers the counters on p. A nil provider yields no-op
// instruments.
func NewInstruments(p *Provider) *Instruments {
	if p == nil {
		p, _ = New(context.Background(), Settings{}, "", "")
	}
	m := p.Meter("")
	decisions, _ := m.Int64Counter(MetricGateDecisions,
		metric.WithDescription("Gate and classifier decisions by gate and outcome"),
	)
	saves, _ := m.Int64Counter(MetricStoreSaves,
		metric.WithDescription("Durable store writes by store and result"),
	)
	return &Instruments{
		tracer:    p.Tracer(""),
		decisions: decisions,
		saves:     saves,
	}
}

// Decision counts one gate decision.
func (in *Instruments) Decision(ctx context.Context, gate, decision string) {
	in.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gate", gate),
		attribute.String("decision", decision),
	))
}

// Save wraps a store write in a span and counts its result.
func (in *Instruments) Save(ctx context.Context, store string, fn func() error) error {
	_, span := in.tracer.Start(ctx, "store.save",
		trace.WithAttributes(attribute.String("store", store)),
	)
	defer span.End()

	err := fn()
	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	in.saves.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("result", result),
	))
	return err
}
