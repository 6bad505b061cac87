package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/store"
)

// fakeAck records the outcome of a delivery.
type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}
func (f *fakeAck) Reject(_ uint64, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

type ingesterFunc func(context.Context, types.Reading) (types.Reading, error)

func (f ingesterFunc) Ingest(ctx context.Context, r types.Reading) (types.Reading, error) {
	return f(ctx, r)
}

func TestConsumer_Handle(t *testing.T) {
	ok := ingesterFunc(func(_ context.Context, r types.Reading) (types.Reading, error) { return r, nil })
	broken := ingesterFunc(func(context.Context, types.Reading) (types.Reading, error) {
		return types.Reading{}, errors.New("store down")
	})
	duplicate := ingesterFunc(func(context.Context, types.Reading) (types.Reading, error) {
		return types.Reading{}, fmt.Errorf("ingest: append: %w", store.ErrConflict)
	})

	tests := []struct {
		name        string
		body        string
		ing         Ingester
		wantAck     bool
		wantRequeue bool
	}{
		{"stored", `{"temperature":60,"vibration":2,"rpm":1480,"load":40}`, ok, true, false},
		{"malformed json", `{"temperature":`, ok, false, false},
		{"missing field", `{"temperature":60}`, ok, false, false},
		{"storage failure", `{"temperature":60,"vibration":2,"rpm":1480,"load":40}`, broken, false, true},
		{"duplicate key", `{"temperature":60,"vibration":2,"rpm":1480,"load":40}`, duplicate, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ack := &fakeAck{}
			c := &Consumer{ingester: tc.ing}
			c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(tc.body)})

			if ack.acked != tc.wantAck {
				t.Errorf("acked: got %v, want %v", ack.acked, tc.wantAck)
			}
			if !tc.wantAck && !ack.nacked {
				t.Error("expected nack")
			}
			if ack.requeue != tc.wantRequeue {
				t.Errorf("requeue: got %v, want %v", ack.requeue, tc.wantRequeue)
			}
		})
	}
}

func TestConsumer_HandleIngestsThroughPipeline(t *testing.T) {
	p, st := newPipeline(t, true)
	c := &Consumer{ingester: p}
	ack := &fakeAck{}
	c.handle(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"motor_id":"pump-2","temperature":60,"vibration":2,"rpm":1480,"load":40,"timestamp":5}`),
	})
	if !ack.acked {
		t.Fatal("expected ack")
	}
	if n, _ := st.Count(context.Background()); n != 1 {
		t.Errorf("Count: got %d, want 1", n)
	}
}
