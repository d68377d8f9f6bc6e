package cart

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	carterrors "github.com/vango-dev/gomarketplace/internal/errors"
	"github.com/vango-dev/gomarketplace/pkg/reactive"
	"github.com/vango-dev/gomarketplace/pkg/storage"
)

const tracerName = "github.com/vango-dev/gomarketplace/pkg/cart"

// State is the lifecycle state of a Store.
type State int32

const (
	StateUninitialized State = iota
	StateHydrating
	StateReady
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHydrating:
		return "hydrating"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Store owns the in-memory cart and mirrors it to storage.
//
// Mutations are serialized by the store. Each one publishes the new cart to
// subscribers synchronously and hands a serialized snapshot to a background
// writer. Subscribers run with the store locked and must not call mutating
// methods from inside the callback.
type Store struct {
	kv      storage.KV
	key     string
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	mu         sync.Mutex
	cart       *reactive.Signal[Cart]
	hydrateErr error

	state     atomic.Int32
	started   atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once

	w *writer
}

// New creates a Store backed by kv. The store starts empty; call Start to
// load the persisted cart.
func New(kv storage.KV, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, carterrors.New("E002")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default().With("component", "cart")
	}
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	s := &Store{
		kv:      kv,
		key:     o.key,
		logger:  logger,
		metrics: o.metrics,
		tracer:  tracer,
		cart:    reactive.NewSignal(Cart{}).WithEquals(Cart.Equal),
		ready:   make(chan struct{}),
		w:       newWriter(kv, o, logger, tracer),
	}
	s.metrics.recordCart(Cart{})

	go s.w.run()
	return s, nil
}

// Key returns the storage key the cart is persisted under.
func (s *Store) Key() string {
	return s.key
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	return State(s.state.Load())
}

// Start loads the persisted cart in the background and returns immediately.
// Calling Start more than once has no effect.
func (s *Store) Start(ctx context.Context) {
	s.must()
	if s.State() == StateClosed || !s.started.CompareAndSwap(false, true) {
		return
	}
	s.state.CompareAndSwap(int32(StateUninitialized), int32(StateHydrating))
	go s.hydrate(ctx)
}

// Ready returns a channel that is closed once hydration has finished.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// WaitReady blocks until hydration has finished or ctx is done.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HydrateErr returns the error hydration ended with, if any.
// The error carries code E010 for malformed data and E011 for read failures.
func (s *Store) HydrateErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrateErr
}

// LastWriteErr returns the most recent write failure, if any.
func (s *Store) LastWriteErr() error {
	return s.w.lastError()
}

func (s *Store) hydrate(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "cart.hydrate",
		trace.WithAttributes(attribute.String("cart.key", s.key)),
	)
	defer span.End()

	loaded, result, err := s.load(ctx)
	span.SetAttributes(attribute.String("cart.hydrate.result", result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	s.metrics.recordHydration(result)

	s.mu.Lock()
	s.hydrateErr = err
	if s.State() != StateClosed {
		if result == "loaded" {
			if n := s.w.discard(); n > 0 {
				s.logger.Debug("cart snapshots replaced by hydration", "count", n)
			}
			s.cart.Set(loaded)
			s.metrics.recordCart(loaded)
		}
		s.state.Store(int32(StateReady))
	}
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	s.w.release()
}

func (s *Store) load(ctx context.Context) (Cart, string, error) {
	value, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		cerr := carterrors.New("E011").Wrap(err)
		s.logger.Warn("cart hydration failed", "code", cerr.Code, "key", s.key, "error", err)
		return nil, "error", cerr
	}
	if !found {
		s.logger.Debug("no persisted cart", "key", s.key)
		return nil, "empty", nil
	}

	c, dropped, err := decode(value)
	if err != nil {
		cerr := carterrors.New("E010").Wrap(err)
		s.logger.Warn("persisted cart is malformed", "code", cerr.Code, "key", s.key, "error", err)
		return nil, "malformed", cerr
	}
	if dropped > 0 {
		s.logger.Warn("dropped invalid cart lines", "key", s.key, "count", dropped)
	}
	s.logger.Debug("cart hydrated", "key", s.key, "lines", c.Lines(), "units", c.Units())
	return c, "loaded", nil
}

// AddToCart adds p with quantity 1, or increments the line that already has
// p's ID.
func (s *Store) AddToCart(p Product) (Cart, bool) {
	return s.mutate("add", func(c Cart) (Cart, bool) { return c.Add(p) })
}

// Increment raises the quantity of the line with id by one.
// Unknown ids are ignored.
func (s *Store) Increment(id string) (Cart, bool) {
	return s.mutate("increment", func(c Cart) (Cart, bool) { return c.Increment(id) })
}

// Decrement lowers the quantity of the line with id by one and removes the
// line when it reaches zero. Unknown ids are ignored.
func (s *Store) Decrement(id string) (Cart, bool) {
	return s.mutate("decrement", func(c Cart) (Cart, bool) { return c.Decrement(id) })
}

func (s *Store) mutate(op string, fn func(Cart) (Cart, bool)) (Cart, bool) {
	s.must()
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.cart.Get()
	if s.State() == StateClosed {
		s.metrics.recordOp(op, false)
		return cur.Clone(), false
	}

	next, changed := fn(cur)
	s.metrics.recordOp(op, changed)
	if !changed {
		return cur.Clone(), false
	}

	data, err := Encode(next)
	s.cart.Set(next)
	s.metrics.recordCart(next)
	if err != nil {
		s.logger.Error("cart encode failed", "op", op, "error", err)
	} else {
		s.w.enqueue(data)
	}
	return next.Clone(), true
}

// Products returns a copy of the current cart.
func (s *Store) Products() Cart {
	s.must()
	return s.cart.Get().Clone()
}

// Len returns the number of distinct products in the cart.
func (s *Store) Len() int {
	s.must()
	return s.cart.Get().Lines()
}

// Count returns the total quantity across all lines.
func (s *Store) Count() int {
	s.must()
	return s.cart.Get().Units()
}

// Subscribe registers fn to receive a copy of the cart after every change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Cart)) (unsubscribe func()) {
	s.must()
	if fn == nil {
		return func() {}
	}
	return s.cart.Subscribe(func(c Cart) { fn(c.Clone()) })
}

// Flush waits until every change made so far has been written to storage
// or has failed. Writes are held until hydration finishes.
func (s *Store) Flush(ctx context.Context) error {
	s.must()
	return s.w.flush(ctx)
}

// Close stops the store and waits for pending writes to drain.
// Mutations after Close are ignored. Changes made before hydration finished
// are dropped, since the stored cart has not been read yet. Close does not
// close the storage backend.
func (s *Store) Close(ctx context.Context) error {
	s.must()
	s.mu.Lock()
	if s.State() == StateClosed {
		s.mu.Unlock()
		return nil
	}
	prev := s.State()
	s.state.Store(int32(StateClosed))
	if prev != StateReady {
		// The stored cart was never read; writing now would replace it.
		if n := s.w.discard(); n > 0 {
			s.logger.Warn("cart closed before hydration, changes not saved",
				"key", s.key, "count", n)
		}
	}
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	return s.w.close(ctx)
}

func (s *Store) must() {
	if s == nil {
		panic(carterrors.New("E001"))
	}
}
