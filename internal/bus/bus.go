// Package bus provides the document event bus: in-process channels or NATS.
package bus

import (
	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
)

// ErrClosed is returned by a bus after Close.
var ErrClosed = ierr.NewError("bus is closed").Mark(ierr.ErrSystem)

// New creates a new event bus based on configuration.
// "channel" returns the in-process ChannelBus, "nats" a NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, ierr.NewErrorf("unsupported event bus type: %s", cfg.Type).
			WithHint("event bus type must be channel or nats").
			Mark(ierr.ErrValidation)
	}
}
