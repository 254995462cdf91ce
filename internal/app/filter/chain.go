package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/domain/listener"
	"github.com/osa030/radiobox/internal/domain/track"
)

// Chain runs admission filters in the order they were added.
type Chain struct {
	filters []Filter
}

// NewChain creates an empty chain that accepts everything.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends f. Later filters only run when every earlier one accepted.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute checks t against every filter that applies to requesterType and
// returns the first rejection. l is nil when the request has no chat user.
func (c *Chain) Execute(ctx context.Context, t track.Track, l *listener.Session, requesterType track.RequesterType) Result {
	for _, f := range c.filters {
		if !f.AppliesTo(requesterType) {
			continue
		}
		if res := f.Check(ctx, t, l); !res.Accepted {
			zlog.Debug().Msgf("request rejected: filter=%s code=%s video=%s requester=%s",
				f.Name(), res.Code, t.ID, requesterType)
			return res
		}
	}
	return Accept()
}

// Filters returns the filters in evaluation order.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// Names returns the filter names in evaluation order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.filters))
	for i, f := range c.filters {
		names[i] = f.Name()
	}
	return names
}
