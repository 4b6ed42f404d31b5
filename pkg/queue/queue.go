// Package queue serializes work against a single remote endpoint.
//
// A Queue runs submitted callbacks one at a time, in submission order, on a
// single drain goroutine, and waits a fixed spacing after each callback before
// starting the next one. A failing callback only fails its own Pending handle.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yuanzhaoK/admin-platform-sub000/pkg/metrics"
)

var ErrClosed = errors.New("queue is closed")

// Func is one unit of queued work. The context is detached from the submitter's
// cancellation and carries only the per-call timeout.
type Func func(ctx context.Context) (any, error)

// RequestError wraps the failure of a single queued callback.
type RequestError struct {
	ID  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("queued request %s: %v", e.ID, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Pending is the caller's handle on a submitted callback.
type Pending struct {
	ID string

	submitted time.Time
	done      chan struct{}
	result    any
	err       error
}

// Done is closed once the callback has finished or was rejected.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the callback finishes or ctx is done. Giving up on the wait
// does not cancel the callback.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pending) resolve(result any, err error) {
	p.result = result
	p.err = err
	close(p.done)
}

type Options struct {
	// Spacing is the minimum pause between the end of one callback and the
	// start of the next.
	Spacing time.Duration
	// Timeout bounds every callback. Zero means no bound.
	Timeout time.Duration
	// OnDispatch runs on the drain goroutine right before each callback.
	OnDispatch func()
	Logger     zerolog.Logger
}

type item struct {
	ctx     context.Context
	fn      Func
	pending *Pending
}

type Queue struct {
	opts Options

	mu     sync.Mutex
	items  []*item
	closed bool

	wake      chan struct{}
	closeCh   chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// New starts the drain goroutine. Call Close to stop it.
func New(opts Options) *Queue {
	q := &Queue{
		opts:    opts,
		wake:    make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go q.run()

	return q
}

// Submit appends fn to the queue and returns immediately.
func (q *Queue) Submit(ctx context.Context, fn Func) *Pending {
	p := &Pending{
		ID:        uuid.NewString(),
		submitted: time.Now(),
		done:      make(chan struct{}),
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		p.resolve(nil, ErrClosed)
		return p
	}
	q.items = append(q.items, &item{ctx: ctx, fn: fn, pending: p})
	depth := len(q.items)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))
	q.opts.Logger.Debug().Str("request_id", p.ID).Int("depth", depth).Msg("request queued")

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return p
}

// Len returns the number of callbacks waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Close stops the drain loop after the running callback, if any, returns.
// Callbacks that have not started are rejected with ErrClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		close(q.closeCh)
		<-q.doneCh
	})
}

func (q *Queue) run() {
	defer close(q.doneCh)

	for {
		select {
		case <-q.closeCh:
			q.rejectAll()
			return
		default:
		}

		it := q.pop()
		if it == nil {
			select {
			case <-q.wake:
			case <-q.closeCh:
				q.rejectAll()
				return
			}
			continue
		}

		q.execute(it)

		if q.opts.Spacing > 0 {
			timer := time.NewTimer(q.opts.Spacing)
			select {
			case <-timer.C:
			case <-q.closeCh:
				timer.Stop()
				q.rejectAll()
				return
			}
		}
	}
}

func (q *Queue) pop() *item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.items) == 0 {
		return nil
	}
	it := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	metrics.QueueDepth.Set(float64(len(q.items)))

	return it
}

func (q *Queue) rejectAll() {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	metrics.QueueDepth.Set(0)
	for _, it := range items {
		it.pending.resolve(nil, ErrClosed)
	}
}

func (q *Queue) execute(it *item) {
	start := time.Now()
	metrics.QueueWaitSeconds.Observe(start.Sub(it.pending.submitted).Seconds())

	ctx := context.WithoutCancel(it.ctx)
	if q.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.Timeout)
		defer cancel()
	}

	if q.opts.OnDispatch != nil {
		q.opts.OnDispatch()
	}

	result, err := call(ctx, it.fn)
	metrics.RequestDurationSeconds.WithLabelValues("queued", metrics.Outcome(err)).Observe(time.Since(start).Seconds())

	if err != nil {
		q.opts.Logger.Debug().Err(err).Str("request_id", it.pending.ID).Msg("queued request failed")
		err = &RequestError{ID: it.pending.ID, Err: err}
	}
	it.pending.resolve(result, err)
}

func call(ctx context.Context, fn Func) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return fn(ctx)
}

// Do submits fn and waits for its typed result.
func Do[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) (T, error)) (T, error) {
	p := q.Submit(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})

	res, err := p.Wait(ctx)
	v, _ := res.(T)
	return v, err
}
