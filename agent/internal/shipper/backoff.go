package shipper

import (
	"context"
	"math/rand"
	"time"
)

const (
	backoffInitial = time.Second
	backoffMax     = time.Minute
)

// backoff doubles from backoffInitial up to backoffMax. Each delay is drawn
// from [d/2, d) so agents restarted together do not reconnect in lockstep.
type backoff struct {
	attempt uint
}

func newBackoff() *backoff { return &backoff{} }

func (b *backoff) next() time.Duration {
	d := backoffInitial << b.attempt
	if d <= 0 || d > backoffMax {
		d = backoffMax
	} else {
		b.attempt++
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half))) //nolint:gosec // jitter only
}

func (b *backoff) reset() { b.attempt = 0 }

// sleep waits for d or until ctx is done, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
