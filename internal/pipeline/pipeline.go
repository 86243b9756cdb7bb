package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/lsm/karajan/internal/correlation"
	"github.com/lsm/karajan/internal/dlq"
	"github.com/lsm/karajan/internal/observability"
	"github.com/lsm/karajan/internal/reply"
	"github.com/lsm/karajan/internal/source"
	"github.com/lsm/karajan/internal/telegram"
	"github.com/lsm/karajan/internal/tracing"
	"github.com/lsm/karajan/internal/wasm"
)

// Error codes recorded on dead letters and the guest error metric.
const (
	ErrCodeAbort      = "abort"
	ErrCodeExit       = "exit"
	ErrCodeDecode     = "decode"
	ErrCodeValidation = "validation"
	ErrCodeTimeout    = "timeout"
	ErrCodeError      = "error"
)

// Processor handles one raw update. wasm.Guest and reply.Processor both
// satisfy it.
type Processor interface {
	Process(ctx context.Context, payload []byte) error
	Close() error
}

// Config holds pipeline configuration.
type Config struct {
	BotName         string
	PropagateErrors bool // When true, return processing errors to the source handler.
}

// Pipeline feeds updates from a source into a processor and records
// failures as dead letters. Failed updates are never retried.
type Pipeline struct {
	config    Config
	source    source.Source
	processor Processor
	dlq       *dlq.Handler
	metrics   *observability.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a new Pipeline. A nil dlq handler discards dead letters.
func New(cfg Config, src source.Source, proc Processor, dlqHandler *dlq.Handler, opts ...Option) *Pipeline {
	if cfg.BotName == "" {
		cfg.BotName = "default"
	}
	if dlqHandler == nil {
		dlqHandler = dlq.NewHandler(&dlq.NoopPublisher{})
	}
	p := &Pipeline{
		config:    cfg,
		source:    src,
		processor: proc,
		dlq:       dlqHandler,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts the pipeline. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("starting pipeline", "bot", p.config.BotName)

	return p.source.Start(ctx, func(ctx context.Context, evt source.Event) error {
		if err := p.processEvent(ctx, evt); err != nil {
			if p.config.PropagateErrors {
				return err
			}
		}
		return nil
	})
}

func (p *Pipeline) processEvent(ctx context.Context, evt source.Event) error {
	corrID := correlation.ExtractOrGenerate(evt.Headers)
	ctx = correlation.WithID(ctx, corrID)
	ctx = correlation.ExtractTraceContext(ctx, evt.Headers)

	ctx, span := tracing.StartSpan(ctx, p.tracer, tracing.SpanUpdateProcess,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			tracing.BotAttr(p.config.BotName),
			tracing.UpdateIDAttr(evt.UpdateID),
			tracing.CorrelationAttr(corrID.Value),
			tracing.SourceAttr(evt.Headers["source"]),
		),
	)
	defer span.End()

	start := time.Now()
	err := p.processor.Process(ctx, evt.Value)
	if p.metrics != nil {
		p.metrics.UpdateDuration.WithLabelValues(p.config.BotName).Observe(time.Since(start).Seconds())
	}

	if err == nil {
		p.countUpdate("success")
		tracing.SetSpanOK(span)
		return nil
	}

	code := Classify(err)
	tracing.SetSpanError(span, err)
	span.SetAttributes(tracing.ErrorTypeAttr(code))
	p.countUpdate("error")
	if p.metrics != nil {
		p.metrics.GuestErrors.WithLabelValues(p.config.BotName, code).Inc()
	}

	p.logger.Error("update processing failed, recording dead letter",
		"bot", p.config.BotName,
		"update_id", evt.UpdateID,
		"correlation_id", corrID.Value,
		"error_type", code,
		"error", err,
	)
	p.sendToDLQ(ctx, evt, code, err.Error(), corrID.Value)
	return err
}

func (p *Pipeline) countUpdate(status string) {
	if p.metrics != nil {
		p.metrics.UpdatesTotal.WithLabelValues(p.config.BotName, status).Inc()
	}
}

func (p *Pipeline) sendToDLQ(ctx context.Context, evt source.Event, code, message, corrID string) {
	info := dlq.FailureInfo{
		ErrorCode:     code,
		ErrorMessage:  message,
		BotName:       p.config.BotName,
		CorrelationID: corrID,
	}
	// The update context may already be past its deadline.
	ctx = context.WithoutCancel(ctx)
	if err := p.dlq.Send(ctx, evt.UpdateID, evt.Value, info); err != nil {
		p.logger.Error("failed to record dead letter",
			"bot", p.config.BotName,
			"update_id", evt.UpdateID,
			"error", err,
		)
		return
	}
	if p.metrics != nil {
		p.metrics.DeadLetters.WithLabelValues(p.config.BotName).Inc()
	}
}

// Classify maps a processing error to a short error code.
func Classify(err error) string {
	var (
		abortErr      *wasm.AbortError
		exitErr       *wasm.ExitError
		decodeErr     *telegram.DecodeError
		validationErr *reply.ValidationError
	)
	switch {
	case errors.As(err, &abortErr):
		return ErrCodeAbort
	case errors.As(err, &exitErr):
		return ErrCodeExit
	case errors.As(err, &decodeErr):
		return ErrCodeDecode
	case errors.As(err, &validationErr):
		return ErrCodeValidation
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	default:
		return ErrCodeError
	}
}

// Shutdown performs graceful shutdown of the pipeline components.
// Closes source, processor, and dead-letter handler in order. Returns all
// errors joined.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down pipeline", "bot", p.config.BotName)

	var errs []error

	if err := p.source.Close(); err != nil {
		p.logger.Error("source close error", "bot", p.config.BotName, "error", err)
		errs = append(errs, fmt.Errorf("source close: %w", err))
	}
	if err := p.processor.Close(); err != nil {
		p.logger.Error("processor close error", "bot", p.config.BotName, "error", err)
		errs = append(errs, fmt.Errorf("processor close: %w", err))
	}
	if err := p.dlq.Close(); err != nil {
		p.logger.Error("dlq close error", "bot", p.config.BotName, "error", err)
		errs = append(errs, fmt.Errorf("dlq close: %w", err))
	}

	p.logger.Info("pipeline shutdown complete", "bot", p.config.BotName)
	return errors.Join(errs...)
}
