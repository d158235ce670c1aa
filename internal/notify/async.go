package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("notification queue full")

// Async delivers to next from a background worker, retrying each event a few times.
type Async struct {
	next      Notifier
	name      string
	queue     chan Event
	log       *zap.Logger
	attempts  int
	backoff   time.Duration
	timeout   time.Duration
	OnFailure func(sink string)

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsync(next Notifier, name string, size int, log *zap.Logger) *Async {
	if size <= 0 {
		size = 256
	}
	a := &Async{
		next:     next,
		name:     name,
		queue:    make(chan Event, size),
		log:      log.Named("notify." + name),
		attempts: 3,
		backoff:  200 * time.Millisecond,
		timeout:  5 * time.Second,
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Publish(_ context.Context, ev Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}
	select {
	case a.queue <- ev:
		return nil
	default:
		a.failed()
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.queue {
		a.deliver(ev)
	}
}

func (a *Async) deliver(ev Event) {
	var err error
	for attempt := 1; attempt <= a.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err = a.next.Publish(ctx, ev)
		cancel()
		if err == nil {
			return
		}
		if attempt < a.attempts {
			time.Sleep(a.backoff * time.Duration(attempt))
		}
	}
	a.failed()
	a.log.Warn("notification dropped after retries",
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.Type)),
		zap.Int("attempts", a.attempts),
		zap.Error(err),
	)
}

func (a *Async) failed() {
	if a.OnFailure != nil {
		a.OnFailure(a.name)
	}
}
