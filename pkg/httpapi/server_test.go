package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/gomarketplace/pkg/cart"
	"github.com/vango-dev/gomarketplace/pkg/storage"
)

func newTestServer(t *testing.T) (*Server, *cart.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	store, err := cart.New(storage.NewMemoryStore(),
		cart.WithLogger(logger),
		cart.WithMetrics(cart.NewMetrics(cart.WithRegistry(reg))),
	)
	if err != nil {
		t.Fatalf("cart.New() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	store.Start(ctx)
	if err := store.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady() error: %v", err)
	}

	srv := New(store, Config{
		Logger:      logger,
		Gatherer:    reg,
		CheckOrigin: func(*http.Request) bool { return true },
	})
	return srv, store
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, CartResponse) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp CartResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: decode response: %v\n%s", method, path, err, rec.Body.String())
		}
	}
	return rec, resp
}

func TestGetCart_Empty(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv, http.MethodGet, "/api/cart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"products":[]`) {
		t.Errorf("empty cart should encode as [], got %s", rec.Body.String())
	}
	if resp.State != "ready" || resp.Lines != 0 || resp.Units != 0 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Changed != nil {
		t.Error("GET should not report changed")
	}
}

func TestAddIncrementDecrement(t *testing.T) {
	srv, store := newTestServer(t)
	body := `{"id":"1","title":"Mug","image_url":"mug.png","price":9.5}`

	_, resp := do(t, srv, http.MethodPost, "/api/cart/items", body)
	if resp.Lines != 1 || resp.Units != 1 || resp.Changed == nil || !*resp.Changed {
		t.Fatalf("after add: %+v", resp)
	}

	_, resp = do(t, srv, http.MethodPost, "/api/cart/items", body)
	if resp.Units != 2 {
		t.Fatalf("after second add: units = %d, want 2", resp.Units)
	}

	_, resp = do(t, srv, http.MethodPost, "/api/cart/items/1/increment", "")
	if resp.Units != 3 {
		t.Fatalf("after increment: units = %d, want 3", resp.Units)
	}

	for i := 0; i < 3; i++ {
		_, resp = do(t, srv, http.MethodPost, "/api/cart/items/1/decrement", "")
	}
	if resp.Lines != 0 {
		t.Fatalf("after decrements: %+v", resp)
	}
	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", store.Len())
	}
}

func TestUnknownIDIsOK(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/cart/items/nope/increment", "/api/cart/items/nope/decrement"} {
		rec, resp := do(t, srv, http.MethodPost, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
		if resp.Changed == nil || *resp.Changed {
			t.Errorf("%s: changed = %v, want false", path, resp.Changed)
		}
	}
}

func TestAdd_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"id":`},
		{"missing id", `{"title":"x","price":1}`},
		{"bad price", `{"id":"1","price":"abc"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, srv, http.MethodPost, "/api/cart/items", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			var e errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || e.Error == "" {
				t.Errorf("expected a JSON error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/cart/items", `{"id":"1","price":1}`)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"ready"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `gomarketplace_cart_operations_total{op="add",result="changed"} 1`) {
		t.Errorf("metrics output missing operations counter:\n%s", rec.Body.String())
	}
}

func wsURL(baseURL, path string) string {
	return "ws" + strings.TrimPrefix(baseURL, "http") + path
}

func readCart(t *testing.T, conn *websocket.Conn) CartResponse {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp CartResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	return resp
}

func TestStream(t *testing.T) {
	srv, store := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/cart/stream"), nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	if first := readCart(t, conn); first.Lines != 0 {
		t.Fatalf("initial frame = %+v, want empty cart", first)
	}

	store.AddToCart(cart.Product{ID: "1", Title: "Mug", Price: cart.NewPrice(9.5)})
	update := readCart(t, conn)
	if update.Lines != 1 || update.Products[0].ID != "1" {
		t.Fatalf("update frame = %+v", update)
	}

	resp, err := http.Post(ts.URL+"/api/cart/items/1/increment", "application/json", nil)
	if err != nil {
		t.Fatalf("POST increment error: %v", err)
	}
	resp.Body.Close()

	if update := readCart(t, conn); update.Units != 2 {
		t.Errorf("after increment: units = %d, want 2", update.Units)
	}
}
