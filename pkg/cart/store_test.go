package cart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	carterrors "github.com/vango-dev/gomarketplace/internal/errors"
	"github.com/vango-dev/gomarketplace/pkg/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// startStore creates a store on kv, starts it and waits for hydration.
func startStore(t *testing.T, kv storage.KV, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	s, err := New(kv, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx := testContext(t)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	s.Start(ctx)
	if err := s.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady() error: %v", err)
	}
	return s
}

func storedCart(t *testing.T, kv storage.KV, key string) Cart {
	t.Helper()
	v, found, err := kv.Get(context.Background(), key)
	if err != nil || !found {
		t.Fatalf("kv.Get(%q) = found %v, err %v", key, found, err)
	}
	c, err := Decode(v)
	if err != nil {
		t.Fatalf("Decode(%s) error: %v", v, err)
	}
	return c
}

// recordingKV wraps a MemoryStore and records every Set.
// When gate is non-nil each Set signals entered and waits on gate.
type recordingKV struct {
	*storage.MemoryStore

	mu      sync.Mutex
	sets    []string
	setErr  error
	getErr  error
	gate    chan struct{}
	entered chan struct{}

	// When getGate is non-nil each Get signals getEntered and waits on it.
	getGate    chan struct{}
	getEntered chan struct{}
}

func newRecordingKV() *recordingKV {
	return &recordingKV{MemoryStore: storage.NewMemoryStore()}
}

func (k *recordingKV) Get(ctx context.Context, key string) (string, bool, error) {
	if k.getGate != nil {
		k.getEntered <- struct{}{}
		<-k.getGate
	}
	if k.getErr != nil {
		return "", false, k.getErr
	}
	return k.MemoryStore.Get(ctx, key)
}

func (k *recordingKV) Set(ctx context.Context, key, value string) error {
	if k.gate != nil {
		k.entered <- struct{}{}
		<-k.gate
	}
	k.mu.Lock()
	k.sets = append(k.sets, value)
	err := k.setErr
	k.mu.Unlock()
	if err != nil {
		return err
	}
	return k.MemoryStore.Set(ctx, key, value)
}

func (k *recordingKV) setCalls() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.sets...)
}

func TestNew_NilStorage(t *testing.T) {
	_, err := New(nil)
	if !carterrors.HasCode(err, "E002") {
		t.Fatalf("New(nil) error = %v, want E002", err)
	}
}

func TestStore_StartsEmpty(t *testing.T) {
	s := startStore(t, storage.NewMemoryStore())

	if s.State() != StateReady {
		t.Errorf("State() = %s, want ready", s.State())
	}
	if len(s.Products()) != 0 {
		t.Errorf("Products() = %+v, want empty", s.Products())
	}
	if s.HydrateErr() != nil {
		t.Errorf("HydrateErr() = %v", s.HydrateErr())
	}
	if s.Key() != DefaultKey {
		t.Errorf("Key() = %q", s.Key())
	}
}

func TestStore_Hydrates(t *testing.T) {
	kv := storage.NewMemoryStore()
	_ = kv.Set(context.Background(), DefaultKey, `[{"id":"2","title":"B","price":5,"quantity":3}]`)

	s := startStore(t, kv)

	got := s.Products()
	want := Cart{{ID: "2", Title: "B", Price: NewPrice(5), Quantity: 3}}
	if !got.Equal(want) {
		t.Fatalf("Products() = %+v, want %+v", got, want)
	}
	if s.Count() != 3 || s.Len() != 1 {
		t.Errorf("Len/Count = %d/%d, want 1/3", s.Len(), s.Count())
	}
}

func TestStore_HydrateMalformed(t *testing.T) {
	kv := storage.NewMemoryStore()
	_ = kv.Set(context.Background(), DefaultKey, `{not json`)

	s := startStore(t, kv)

	if len(s.Products()) != 0 {
		t.Errorf("Products() = %+v, want empty", s.Products())
	}
	if !carterrors.HasCode(s.HydrateErr(), "E010") {
		t.Errorf("HydrateErr() = %v, want E010", s.HydrateErr())
	}
	if s.State() != StateReady {
		t.Errorf("State() = %s, want ready", s.State())
	}
	v, _, _ := kv.Get(context.Background(), DefaultKey)
	if v != `{not json` {
		t.Errorf("stored value changed to %q before any mutation", v)
	}
}

func TestStore_HydrateReadError(t *testing.T) {
	kv := newRecordingKV()
	kv.getErr = errors.New("connection refused")

	s := startStore(t, kv)

	if !carterrors.HasCode(s.HydrateErr(), "E011") {
		t.Errorf("HydrateErr() = %v, want E011", s.HydrateErr())
	}
	if !errors.Is(s.HydrateErr(), kv.getErr) {
		t.Errorf("HydrateErr() should wrap the backend error")
	}

	s.AddToCart(product("1"))
	if s.Len() != 1 {
		t.Errorf("store should keep working after a failed hydration")
	}
}

func TestStore_CustomKey(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := startStore(t, kv, WithKey("custom"))

	s.AddToCart(product("1"))
	if err := s.Flush(testContext(t)); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if _, found, _ := kv.Get(context.Background(), "custom"); !found {
		t.Error("cart not written under custom key")
	}
}

func TestStore_PersistsEveryMutation(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := startStore(t, kv)
	ctx := testContext(t)

	ops := []func() (Cart, bool){
		func() (Cart, bool) { return s.AddToCart(product("1")) },
		func() (Cart, bool) { return s.AddToCart(product("2")) },
		func() (Cart, bool) { return s.Increment("1") },
		func() (Cart, bool) { return s.Decrement("2") },
		func() (Cart, bool) { return s.Decrement("1") },
	}
	for i, op := range ops {
		after, _ := op()
		if err := s.Flush(ctx); err != nil {
			t.Fatalf("op %d: Flush() error: %v", i, err)
		}
		if got := storedCart(t, kv, DefaultKey); !got.Equal(after) {
			t.Fatalf("op %d: stored %+v, want %+v", i, got, after)
		}
	}
}

func TestStore_Scenario(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := startStore(t, kv)
	ctx := testContext(t)

	s.AddToCart(product("1"))
	if c := s.Products(); len(c) != 1 || c[0].Quantity != 1 {
		t.Fatalf("after add: %+v", c)
	}
	s.AddToCart(product("1"))
	if c := s.Products(); len(c) != 1 || c[0].Quantity != 2 {
		t.Fatalf("after second add: %+v", c)
	}
	s.Decrement("1")
	if c := s.Products(); len(c) != 1 || c[0].Quantity != 1 {
		t.Fatalf("after decrement: %+v", c)
	}
	s.Decrement("1")
	if c := s.Products(); len(c) != 0 {
		t.Fatalf("after last decrement: %+v", c)
	}

	_ = s.Flush(ctx)
	v, _, _ := kv.Get(ctx, DefaultKey)
	if v != "[]" {
		t.Errorf("stored = %s, want []", v)
	}
}

func TestStore_UnknownIDNeitherPublishesNorWrites(t *testing.T) {
	kv := newRecordingKV()
	s := startStore(t, kv)

	calls := 0
	s.Subscribe(func(Cart) { calls++ })

	if _, changed := s.Increment("missing"); changed {
		t.Error("Increment(missing) reported a change")
	}
	if _, changed := s.Decrement("missing"); changed {
		t.Error("Decrement(missing) reported a change")
	}
	_ = s.Flush(testContext(t))

	if calls != 0 {
		t.Errorf("subscriber called %d times, want 0", calls)
	}
	if n := len(kv.setCalls()); n != 0 {
		t.Errorf("storage written %d times, want 0", n)
	}
}

func TestStore_SubscribeReceivesSnapshots(t *testing.T) {
	s := startStore(t, storage.NewMemoryStore())

	var got []int
	unsubscribe := s.Subscribe(func(c Cart) {
		got = append(got, c.Units())
		if len(c) > 0 {
			c[0].Quantity = 99
		}
	})

	s.AddToCart(product("1"))
	s.Increment("1")
	unsubscribe()
	s.Increment("1")

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("subscriber saw %v, want [1 2]", got)
	}
	if s.Count() != 3 {
		t.Errorf("subscriber mutation leaked into the store: Count() = %d", s.Count())
	}
}

func TestStore_ProductsIsACopy(t *testing.T) {
	s := startStore(t, storage.NewMemoryStore())
	s.AddToCart(product("1"))

	c := s.Products()
	c[0].Quantity = 50

	if s.Count() != 1 {
		t.Errorf("Count() = %d after mutating returned copy", s.Count())
	}
}

func TestStore_WriteFailureIsNotSurfaced(t *testing.T) {
	kv := newRecordingKV()
	kv.setErr = errors.New("quota exceeded")
	s := startStore(t, kv)

	c, changed := s.AddToCart(product("1"))
	if !changed || len(c) != 1 {
		t.Fatalf("AddToCart() = %+v, %v", c, changed)
	}
	if err := s.Flush(testContext(t)); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if !carterrors.HasCode(s.LastWriteErr(), "E012") {
		t.Errorf("LastWriteErr() = %v, want E012", s.LastWriteErr())
	}
	if n := len(kv.setCalls()); n != 1 {
		t.Errorf("Set called %d times, want 1 (no retry)", n)
	}
	if s.Len() != 1 {
		t.Error("in-memory cart must keep the change")
	}
}

func TestStore_SupersedesOldestPending(t *testing.T) {
	kv := newRecordingKV()
	kv.gate = make(chan struct{})
	kv.entered = make(chan struct{}, 4)
	s := startStore(t, kv, WithQueueSize(1))
	ctx := testContext(t)

	s.AddToCart(product("1")) // picked up by the writer, blocked in Set
	<-kv.entered
	s.AddToCart(product("2")) // pending
	s.AddToCart(product("3")) // replaces the pending snapshot

	go func() {
		for range kv.entered {
			kv.gate <- struct{}{}
		}
	}()
	kv.gate <- struct{}{}

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	close(kv.entered)

	sets := kv.setCalls()
	if len(sets) != 2 {
		t.Fatalf("Set called %d times, want 2: %v", len(sets), sets)
	}
	if got := storedCart(t, kv, DefaultKey); !got.Equal(s.Products()) {
		t.Errorf("stored %+v, want latest %+v", got, s.Products())
	}
}

func TestStore_MutationsBeforeHydration(t *testing.T) {
	kv := newRecordingKV()
	_ = kv.MemoryStore.Set(context.Background(), DefaultKey, `[{"id":"2","title":"B","price":5,"quantity":3}]`)

	s, err := New(kv, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close(context.Background())

	// Not started: operations act on the empty cart and never block.
	c, _ := s.AddToCart(product("1"))
	if len(c) != 1 || c[0].ID != "1" {
		t.Fatalf("AddToCart() before Start = %+v", c)
	}
	if s.State() != StateUninitialized {
		t.Errorf("State() = %s, want uninitialized", s.State())
	}

	ctx := testContext(t)
	s.Start(ctx)
	if err := s.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady() error: %v", err)
	}
	_ = s.Flush(ctx)

	want := Cart{{ID: "2", Title: "B", Price: NewPrice(5), Quantity: 3}}
	if got := s.Products(); !got.Equal(want) {
		t.Errorf("Products() = %+v, want hydrated %+v", got, want)
	}
	if n := len(kv.setCalls()); n != 0 {
		t.Errorf("pre-hydration snapshot was written %d times", n)
	}
}

func TestStore_FlushWaitsForHydration(t *testing.T) {
	s, _ := New(storage.NewMemoryStore(), WithLogger(quietLogger()))
	defer s.Close(context.Background())

	s.AddToCart(product("1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Flush() before Start = %v, want deadline exceeded", err)
	}
}

func TestStore_CloseDrainsAndStops(t *testing.T) {
	kv := newRecordingKV()
	s := startStore(t, kv)

	s.AddToCart(product("1"))
	s.AddToCart(product("2"))
	if err := s.Close(testContext(t)); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %s, want closed", s.State())
	}
	if got := storedCart(t, kv, DefaultKey); got.Lines() != 2 {
		t.Errorf("stored %+v, want both items after drain", got)
	}

	c, changed := s.AddToCart(product("3"))
	if changed || c.Lines() != 2 {
		t.Errorf("AddToCart() after Close = %+v, %v", c, changed)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestStore_CloseDuringHydrationKeepsStoredCart(t *testing.T) {
	const stored = `[{"id":"2","title":"B","price":5,"quantity":3}]`
	kv := newRecordingKV()
	_ = kv.MemoryStore.Set(context.Background(), DefaultKey, stored)
	kv.getGate = make(chan struct{})
	kv.getEntered = make(chan struct{}, 1)

	s, err := New(kv, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx := testContext(t)
	s.Start(ctx)

	select {
	case <-kv.getEntered:
	case <-ctx.Done():
		t.Fatal("hydration never read storage")
	}
	s.AddToCart(product("9"))

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	close(kv.getGate)

	if n := len(kv.setCalls()); n != 0 {
		t.Errorf("close during hydration wrote %d snapshots", n)
	}
	want := Cart{{ID: "2", Title: "B", Price: NewPrice(5), Quantity: 3}}
	if got := storedCart(t, kv, DefaultKey); !got.Equal(want) {
		t.Errorf("stored %+v, want untouched %+v", got, want)
	}
}

func TestStore_CloseBeforeStart(t *testing.T) {
	kv := newRecordingKV()
	s, _ := New(kv, WithLogger(quietLogger()))
	s.AddToCart(product("1"))
	if err := s.Close(testContext(t)); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if n := len(kv.setCalls()); n != 0 {
		t.Errorf("Close before Start wrote %d snapshots", n)
	}
	select {
	case <-s.Ready():
	default:
		t.Error("Ready() should be closed after Close")
	}
	s.Start(context.Background())
	if s.State() != StateClosed {
		t.Errorf("State() = %s after Start on closed store", s.State())
	}
}

func TestStore_ConcurrentMutations(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := startStore(t, kv)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.AddToCart(product("shared"))
			}
		}()
	}
	wg.Wait()

	if s.Count() != 400 {
		t.Errorf("Count() = %d, want 400", s.Count())
	}
	_ = s.Flush(testContext(t))
	if got := storedCart(t, kv, DefaultKey); !got.Equal(s.Products()) {
		t.Errorf("stored %+v, want %+v", got, s.Products())
	}
}

func TestNilStorePanics(t *testing.T) {
	defer func() {
		r := recover()
		cerr, ok := r.(*carterrors.CartError)
		if !ok || cerr.Code != "E001" {
			t.Errorf("recover() = %v, want E001", r)
		}
	}()
	var s *Store
	s.Products()
}
