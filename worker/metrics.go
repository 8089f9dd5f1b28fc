package worker

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vendor-bridge/domain"
)

const (
	commandSpanName = "worker.command"

	stageAuthenticating = "authenticating"
	stageExecuting      = "executing"
	stageEmitting       = "emitting"
	stageDeadLetter     = "dead-letter"
	stageReplay         = "replay"
)

type commandMetrics struct {
	span    trace.Span
	start   time.Time
	id      string
	op      domain.Operation
	role    domain.Role
	attempt int64
	stage   string
	outcome string
	err     error
}

func newCommandMetrics(ctx context.Context, cmd domain.Command) (*commandMetrics, context.Context) {
	tracer := otel.GetTracerProvider().Tracer("vendor-worker")
	ctx, span := tracer.Start(ctx, commandSpanName, trace.WithAttributes(
		attribute.String("vendor.correlation_id", cmd.CorrelationID),
		attribute.String("vendor.operation", string(cmd.Operation)),
		attribute.String("vendor.role", string(cmd.UserContext.Role)),
		attribute.Int64("vendor.delivery_attempt", cmd.DeliveryAttempt),
	))
	return &commandMetrics{
		span:    span,
		start:   time.Now(),
		id:      cmd.CorrelationID,
		op:      cmd.Operation,
		role:    cmd.UserContext.Role,
		attempt: cmd.DeliveryAttempt,
	}, ctx
}

func (m *commandMetrics) SetStage(stage string) {
	m.stage = stage
}

func (m *commandMetrics) SetOutcome(outcome string) {
	m.outcome = outcome
}

func (m *commandMetrics) SetError(err error) {
	m.err = err
}

// Log closes the span and emits one structured log line per processed
// delivery.
func (m *commandMetrics) Log() {
	if m == nil {
		return
	}
	fields := log.Fields{
		"correlationId": m.id,
		"operation":     m.op,
		"role":          m.role,
		"attempt":       m.attempt,
		"total_ms":      float64(time.Since(m.start)) / float64(time.Millisecond),
	}
	if m.stage != "" {
		fields["stage"] = m.stage
		m.span.SetAttributes(attribute.String("vendor.stage", m.stage))
	}
	if m.outcome != "" {
		fields["outcome"] = m.outcome
		m.span.SetAttributes(attribute.String("vendor.outcome", m.outcome))
	}
	if m.err != nil {
		fields["error"] = m.err.Error()
		m.span.RecordError(m.err)
		m.span.SetStatus(codes.Error, m.err.Error())
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()
	log.WithFields(fields).Info("command.processed")
}
