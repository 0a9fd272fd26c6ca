package nats

import (
	"context"
	"errors"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// connectionLost lists the client errors that clear up once the connection
// is re-established.
var connectionLost = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
}

// classifyPublishError lets a job announcement be retried only while the
// broker is unreachable. Publishing an id twice is harmless because the
// worker skips jobs that are no longer pending.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Benign
	case isConnectionLost(err):
		return resilience.Transient
	default:
		return resilience.Fatal
	}
}

func isConnectionLost(err error) bool {
	for _, target := range connectionLost {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func queueError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return domain.WrapError(domain.ErrTimeout, op, err)
	case isConnectionLost(err), resilience.IsCircuitOpen(err):
		return domain.WrapError(domain.ErrNetwork, op, err)
	default:
		return domain.WrapError(domain.ErrServer, op, err)
	}
}
