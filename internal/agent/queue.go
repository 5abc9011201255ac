package agent

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/fusionwatch/fusionwatch/internal/rowlog"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second

	// DefaultQueueSize is the number of rows a Queue buffers.
	DefaultQueueSize = 64
)

// Queue buffers rows for a remote sink (broker, database) and delivers them
// from its own goroutine, so a slow or unreachable sink never delays a cycle.
// Log is non-blocking; when the buffer is full the oldest row is evicted.
// Run must be called in a goroutine to drain the buffer.
type Queue struct {
	name    string
	sink    rowlog.Logger
	buf     chan rowlog.Row
	onError func(sink string)
	bo      *backoff
}

// NewQueue wraps sink. onError, if non-nil, is called for every failed
// delivery.
func NewQueue(name string, sink rowlog.Logger, size int, onError func(sink string)) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		name:    name,
		sink:    sink,
		buf:     make(chan rowlog.Row, size),
		onError: onError,
		bo:      newBackoff(backoffInitial, backoffMax),
	}
}

// Log enqueues row. It never blocks and always returns nil.
func (q *Queue) Log(_ context.Context, row rowlog.Row) error {
	select {
	case q.buf <- row:
	default:
		select {
		case <-q.buf:
			slog.Warn("queue: buffer full, evicted oldest row",
				"sink", q.name, "buffer_cap", cap(q.buf))
		default:
		}
		select {
		case q.buf <- row:
		default:
		}
	}
	return nil
}

// Len returns the number of rows waiting for delivery.
func (q *Queue) Len() int {
	return len(q.buf)
}

// Run drains the buffer until ctx is cancelled. A failed delivery is put
// back if there is room and retried after an exponential backoff.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case row := <-q.buf:
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			err := q.sink.Log(sendCtx, row)
			cancel()

			if err == nil {
				q.bo.reset()
				slog.Debug("queue: row delivered", "sink", q.name, "time", row.TimeOfDay)
				continue
			}

			if q.onError != nil {
				q.onError(q.name)
			}
			select {
			case q.buf <- row:
			default:
				// Buffer refilled meanwhile; newer rows win.
			}

			wait := q.bo.next()
			slog.Warn("queue: delivery failed, will retry",
				"sink", q.name, "err", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, current: initial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

func (b *backoff) reset() {
	b.current = b.initial
}
