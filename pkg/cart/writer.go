package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	carterrors "github.com/vango-dev/gomarketplace/internal/errors"
	"github.com/vango-dev/gomarketplace/pkg/storage"
)

// snapshot is a cart serialized at mutation time.
type snapshot struct {
	seq  uint64
	data string
}

// writer applies snapshots to storage in order on a single goroutine.
// When more than size snapshots are pending the oldest is dropped; since
// every snapshot is a full overwrite, the stored value still ends at the
// newest cart.
//
// Nothing is written until release is called, so snapshots taken before
// hydration cannot overwrite the value hydration is about to read.
type writer struct {
	kv      storage.KV
	key     string
	timeout time.Duration
	size    int
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	mu        sync.Mutex
	pending   []snapshot
	enqueued  uint64
	completed uint64
	progress  chan struct{}
	lastErr   error
	closed    bool

	wake        chan struct{}
	done        chan struct{}
	open        chan struct{}
	releaseOnce sync.Once
}

func newWriter(kv storage.KV, o options, logger *slog.Logger, tracer trace.Tracer) *writer {
	return &writer{
		kv:       kv,
		key:      o.key,
		timeout:  o.writeTimeout,
		size:     o.queueSize,
		logger:   logger,
		metrics:  o.metrics,
		tracer:   tracer,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		open:     make(chan struct{}),
	}
}

// release lets the writer start applying snapshots.
func (w *writer) release() {
	w.releaseOnce.Do(func() { close(w.open) })
}

// discard drops every pending snapshot and marks it resolved.
func (w *writer) discard() int {
	w.mu.Lock()
	n := len(w.pending)
	w.pending = nil
	if w.completed < w.enqueued {
		w.completed = w.enqueued
		close(w.progress)
		w.progress = make(chan struct{})
	}
	w.mu.Unlock()
	return n
}

// enqueue schedules data to be written. It never blocks.
func (w *writer) enqueue(data string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.enqueued++
	if len(w.pending) >= w.size {
		w.pending = w.pending[1:]
		w.metrics.recordSuperseded()
	}
	w.pending = append(w.pending, snapshot{seq: w.enqueued, data: data})
	w.mu.Unlock()

	w.signal()
}

func (w *writer) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) run() {
	defer close(w.done)
	<-w.open
	for {
		w.mu.Lock()
		for len(w.pending) == 0 {
			if w.closed {
				w.mu.Unlock()
				return
			}
			w.mu.Unlock()
			<-w.wake
			w.mu.Lock()
		}
		snap := w.pending[0]
		w.pending = w.pending[1:]
		w.mu.Unlock()

		err := w.write(snap)

		w.mu.Lock()
		if snap.seq > w.completed {
			w.completed = snap.seq
		}
		if err != nil {
			w.lastErr = err
		}
		close(w.progress)
		w.progress = make(chan struct{})
		w.mu.Unlock()
	}
}

func (w *writer) write(snap snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	ctx, span := w.tracer.Start(ctx, "cart.persist",
		trace.WithAttributes(
			attribute.String("cart.key", w.key),
			attribute.Int64("cart.seq", int64(snap.seq)),
			attribute.Int("cart.bytes", len(snap.data)),
		),
	)
	defer span.End()

	start := time.Now()
	err := w.kv.Set(ctx, w.key, snap.data)
	w.metrics.recordWrite(time.Since(start), err)

	if err != nil {
		cerr := carterrors.New("E012").Wrap(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.logger.Error("cart write failed",
			"code", cerr.Code,
			"key", w.key,
			"seq", snap.seq,
			"error", err,
		)
		return cerr
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// flush waits until every snapshot enqueued before the call has been
// written or has failed.
func (w *writer) flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.enqueued
	for w.completed < target {
		ch := w.progress
		w.mu.Unlock()
		select {
		case <-ch:
		case <-w.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
		w.mu.Lock()
	}
	w.mu.Unlock()
	return nil
}

// close stops accepting snapshots and waits for pending ones to drain.
func (w *writer) close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.release()
	w.signal()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *writer) lastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}
