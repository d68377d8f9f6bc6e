// Package httpapi serves a cart Store over HTTP.
//
// Routes:
//
//	GET  /api/cart                        current cart
//	POST /api/cart/items                  add a product (JSON body)
//	POST /api/cart/items/{id}/increment   raise a line's quantity
//	POST /api/cart/items/{id}/decrement   lower or remove a line
//	GET  /api/cart/stream                 WebSocket of cart snapshots
//	GET  /healthz                         liveness and store state
//	GET  /metrics                         Prometheus metrics
//
// Unknown product ids are not errors: the response carries the unchanged
// cart with "changed": false.
package httpapi
