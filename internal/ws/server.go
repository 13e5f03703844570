package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NotCreative21/taurus/internal/logging"
)

// InboundHandler receives frames a subscriber sends toward the game sessions.
type InboundHandler func(subscriberID string, f Frame)

type Server struct {
	registry *Registry
	path     string
	inbound  InboundHandler
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(registry *Registry, path string, inbound InboundHandler) *Server {
	return &Server{
		registry: registry,
		path:     path,
		inbound:  inbound,
		upgrader: websocket.Upgrader{
			// Bridges connect from anywhere; there is no browser session to protect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc(s.path, s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws upgrade failed", logging.KeyError, err)
		return
	}

	id := fmt.Sprintf("%s#%d", r.RemoteAddr, s.nextID.Add(1))
	c := newConn(id, wsConn, ParseTopics(r.URL.Query().Get("topics")))

	if err := s.registry.Add(c); err != nil {
		log.Warn("rejecting subscriber", logging.KeySubscriber, id, logging.KeyError, err)
		wsConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeTimeout))
		wsConn.Close()
		return
	}
	log.Info("subscriber connected", logging.KeySubscriber, id)

	go c.writePump()
	go func() {
		defer func() {
			s.registry.Remove(id)
			c.Close()
			log.Info("subscriber disconnected", logging.KeySubscriber, id)
		}()
		c.readPump(func(f Frame) {
			if s.inbound != nil {
				s.inbound(id, f)
			}
		})
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "ok subscribers=%d\n", s.registry.Count())
}

// ListenAndServe serves mux until ctx is cancelled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
