package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"
)

func TestClassifyPublishError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want resilience.ErrorClassification
	}{
		{"no servers", fmt.Errorf("publish: %w", nats.ErrNoServers), resilience.Transient},
		{"reconnecting", nats.ErrConnectionReconnecting, resilience.Transient},
		{"cancelled", context.Canceled, resilience.Benign},
		{"bad subject", nats.ErrBadSubject, resilience.Fatal},
	}
	for _, tc := range cases {
		if got := classifyPublishError(tc.err); got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestQueueErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{nats.ErrDisconnected, domain.ErrNetwork},
		{gobreaker.ErrOpenState, domain.ErrNetwork},
		{context.DeadlineExceeded, domain.ErrTimeout},
		{errors.New("permissions violation"), domain.ErrServer},
	}
	for _, tc := range cases {
		if err := queueError("nats publish", tc.err); !domain.IsKind(err, tc.kind) {
			t.Fatalf("queueError(%v) = %v, want kind %v", tc.err, err, tc.kind)
		}
	}
	if queueError("nats publish", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
