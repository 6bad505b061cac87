package shipper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/motortwin/motortwin/agent/internal/config"
	"github.com/motortwin/motortwin/pkg/types"
)

const sendTimeout = 10 * time.Second

// Sender delivers readings over one open connection.
type Sender interface {
	Send(ctx context.Context, r types.Reading) error
	Close() error
}

// dialFunc opens a Sender for the configured transport.
type dialFunc func(ctx context.Context, cfg config.AgentConfig) (Sender, error)

// permanentError marks a reading the server refused outright. It is dropped
// rather than retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func isPermanentError(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Shipper queues readings in a bounded buffer and forwards them to the
// server. Ship never blocks: a full buffer loses its oldest reading.
type Shipper struct {
	cfg    config.AgentConfig
	buf    chan types.Reading
	dialFn dialFunc
}

// New returns a Shipper for cfg.Transport ("http" or "amqp").
func New(cfg config.AgentConfig) *Shipper {
	s := &Shipper{
		cfg:    cfg,
		buf:    make(chan types.Reading, cfg.BufferSize),
		dialFn: dialHTTP,
	}
	if cfg.Transport == "amqp" {
		s.dialFn = dialAMQP
	}
	return s
}

// Ship enqueues r, evicting the oldest buffered reading when full.
func (s *Shipper) Ship(r types.Reading) {
	for {
		select {
		case s.buf <- r:
			return
		default:
		}
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest reading",
				"motor", old.MotorID, "evicted_id", old.ID, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Pending reports how many readings are waiting to be sent.
func (s *Shipper) Pending() int { return len(s.buf) }

// Run keeps a connection open and drains the buffer through it until ctx is
// cancelled. Dial failures and dropped connections are retried with backoff.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()
	log := slog.With("transport", s.cfg.Transport)

	for ctx.Err() == nil {
		sender, err := s.dialFn(ctx, s.cfg)
		if err == nil {
			log.Info("shipper: connected")
			bo.reset()
			err = s.drain(ctx, sender)
			sender.Close()
			if ctx.Err() != nil {
				return
			}
			err = fmt.Errorf("connection lost: %w", err)
		}

		wait := bo.next()
		log.Warn("shipper: not connected, retrying", "err", err, "retry_in", wait)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// drain sends buffered readings until a transient failure or cancellation.
// The reading that hit a transient failure goes back into the buffer if
// there is room for it.
func (s *Shipper) drain(ctx context.Context, sender Sender) error {
	for {
		var r types.Reading
		select {
		case <-ctx.Done():
			return nil
		case r = <-s.buf:
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := sender.Send(sendCtx, r)
		cancel()

		switch {
		case err == nil:
			slog.Debug("shipper: reading delivered", "motor", r.MotorID, "id", r.ID)
		case isPermanentError(err):
			slog.Error("shipper: server rejected reading, discarding",
				"motor", r.MotorID, "id", r.ID, "err", err)
		default:
			select {
			case s.buf <- r:
			default:
			}
			return fmt.Errorf("send: %w", err)
		}
	}
}
