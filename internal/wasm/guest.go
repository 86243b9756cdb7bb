package wasm

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/lsm/karajan/internal/tracing"
)

const tracerName = "github.com/lsm/karajan/internal/wasm"

// Guest feeds updates to a runtime. It is the processor the pipeline uses
// when a bot module is configured.
type Guest struct {
	rt     Runtime
	name   string
	logger *slog.Logger
}

func NewGuest(rt Runtime, name string, logger *slog.Logger) *Guest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guest{rt: rt, name: name, logger: logger}
}

// Process runs processUpdate for one update payload. Anything the guest
// returns or prints is logged at debug level.
func (g *Guest) Process(ctx context.Context, payload []byte) error {
	ctx, span := tracing.StartSpan(ctx, otel.Tracer(tracerName), tracing.SpanGuestCall)
	defer span.End()
	span.SetAttributes(tracing.BotAttr(g.name), tracing.RuntimeAttr(string(g.rt.Type())))

	out, err := g.rt.Call(ctx, payload)
	if err != nil {
		tracing.SetSpanError(span, err)
		return fmt.Errorf("guest %s: %w", g.name, err)
	}
	if len(out) > 0 {
		g.logger.Debug("guest output", "guest", g.name, "runtime", g.rt.Type(), "output", string(out))
	}
	tracing.SetSpanOK(span)
	return nil
}

func (g *Guest) Close() error {
	return g.rt.Close()
}
