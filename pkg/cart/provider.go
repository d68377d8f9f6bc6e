package cart

import (
	"context"
	"net/http"

	carterrors "github.com/vango-dev/gomarketplace/internal/errors"
)

type storeKey struct{}

// WithStore returns a copy of ctx that carries s.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// From returns the Store carried by ctx.
func From(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(storeKey{}).(*Store)
	return s, ok && s != nil
}

// Use returns the Store carried by ctx.
// It panics with an E001 *errors.CartError when ctx carries no store,
// which means the caller is running outside a Provider.
func Use(ctx context.Context) *Store {
	s, ok := From(ctx)
	if !ok {
		panic(carterrors.New("E001"))
	}
	return s
}

// Provider returns middleware that scopes s into every request context.
func Provider(s *Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithStore(r.Context(), s)))
		})
	}
}
