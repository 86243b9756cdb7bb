package reply

import (
	"context"

	"github.com/lsm/karajan/internal/host"
)

// Processor runs the reply logic natively, for deployments without a guest
// module.
type Processor struct {
	host host.Host
}

func NewProcessor(h host.Host) *Processor {
	return &Processor{host: h}
}

func (p *Processor) Process(ctx context.Context, payload []byte) error {
	return ProcessUpdateJSON(ctx, p.host, string(payload))
}

func (p *Processor) Close() error { return nil }
