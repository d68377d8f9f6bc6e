package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/gomarketplace/pkg/cart"
)

const maxBodyBytes = 1 << 20

// CartResponse is the JSON shape of a cart returned by the API and the stream.
type CartResponse struct {
	Products cart.Cart `json:"products"`
	Lines    int       `json:"lines"`
	Units    int       `json:"units"`
	State    string    `json:"state"`
	Changed  *bool     `json:"changed,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newCartResponse(s *cart.Store, c cart.Cart) CartResponse {
	if c == nil {
		c = cart.Cart{}
	}
	return CartResponse{
		Products: c,
		Lines:    c.Lines(),
		Units:    c.Units(),
		State:    s.State().String(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  cart.Use(r.Context()).State().String(),
	})
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	store := cart.Use(r.Context())
	writeJSON(w, http.StatusOK, newCartResponse(store, store.Products()))
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	store := cart.Use(r.Context())

	var p cart.Product
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid product: "+err.Error())
		return
	}
	if strings.TrimSpace(p.ID) == "" {
		writeError(w, http.StatusBadRequest, "product id is required")
		return
	}

	c, changed := store.AddToCart(p)
	s.writeMutation(w, store, c, changed)
}

func (s *Server) handleIncrement(w http.ResponseWriter, r *http.Request) {
	s.mutateByID(w, r, (*cart.Store).Increment)
}

func (s *Server) handleDecrement(w http.ResponseWriter, r *http.Request) {
	s.mutateByID(w, r, (*cart.Store).Decrement)
}

func (s *Server) mutateByID(w http.ResponseWriter, r *http.Request, op func(*cart.Store, string) (cart.Cart, bool)) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "product id is required")
		return
	}
	store := cart.Use(r.Context())
	c, changed := op(store, id)
	s.writeMutation(w, store, c, changed)
}

func (s *Server) writeMutation(w http.ResponseWriter, store *cart.Store, c cart.Cart, changed bool) {
	resp := newCartResponse(store, c)
	resp.Changed = &changed
	writeJSON(w, http.StatusOK, resp)
}
