package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/gomarketplace/pkg/cart"
)

const (
	streamBuffer   = 8
	maxClientFrame = 512
)

// handleStream upgrades to a WebSocket and sends the cart on connect and
// after every change. Client frames are read and discarded.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	store := cart.Use(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("conn", uuid.NewString())
	logger.Debug("stream connected", "remote", r.RemoteAddr)

	updates := make(chan cart.Cart, streamBuffer)
	unsubscribe := store.Subscribe(func(c cart.Cart) {
		// Called with the store locked: never block.
		select {
		case updates <- c:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- c:
			default:
			}
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxClientFrame)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.send(conn, store, store.Products()); err != nil {
		logger.Debug("stream write failed", "error", err)
		return
	}

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case c := <-updates:
			if err := s.send(conn, store, c); err != nil {
				logger.Debug("stream write failed", "error", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Debug("stream ping failed", "error", err)
				return
			}
		case <-done:
			logger.Debug("stream disconnected")
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, store *cart.Store, c cart.Cart) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return conn.WriteJSON(newCartResponse(store, c))
}
