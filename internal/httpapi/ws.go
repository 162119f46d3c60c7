package httpapi

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jacques/jacques/internal/config"
	"github.com/jacques/jacques/internal/eventpipe"
)

// WSServer serves the WebSocket surface at its own fixed port: each
// connection joins the event pipe's Hub as a Subscriber and relays
// inbound subscriber requests back to the Pipe.
type WSServer struct {
	cfg      config.Config
	hub      *eventpipe.Hub
	pipe     *eventpipe.Pipe
	upgrader websocket.Upgrader
	srv      *http.Server
}

// NewWSServer builds a WebSocket server wired to the given Hub/Pipe.
func NewWSServer(cfg config.Config, hub *eventpipe.Hub, pipe *eventpipe.Pipe) *WSServer {
	return &WSServer{
		cfg:  cfg,
		hub:  hub,
		pipe: pipe,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				allowed := buildAllowedOrigins(cfg.Host, cfg.Port)
				return allowed[origin] || isBindAll(cfg.Host)
			},
		},
	}
}

// Handler returns the WebSocket upgrade handler, exposed separately
// from ListenAndServe so it can be exercised against an
// httptest.Server.
func (w *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", w.handleUpgrade)
	return mux
}

// ListenAndServe binds cfg.Host:cfg.WSPort and serves until ctx is
// cancelled.
func (w *WSServer) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(w.cfg.Host, fmt.Sprintf("%d", w.cfg.WSPort))
	w.srv = &http.Server{Addr: addr, Handler: w.Handler()}

	errCh := make(chan error, 1)
	go func() { errCh <- w.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// wsSubscriber adapts a single websocket connection to
// eventpipe.Subscriber. Send is only ever called from the Hub's
// per-subscriber delivery goroutine, so writes are never concurrent.
type wsSubscriber struct {
	conn *websocket.Conn
}

func (s *wsSubscriber) Send(msg eventpipe.Message) {
	if err := s.conn.WriteJSON(msg); err != nil {
		log.Printf("httpapi: ws write error: %v", err)
	}
}

func (w *WSServer) handleUpgrade(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Printf("httpapi: ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := &wsSubscriber{conn: conn}
	id := w.hub.Join(sub, w.pipe.Snapshot())
	defer w.hub.Leave(id)

	for {
		var req eventpipe.Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		w.pipe.HandleRequest(sub, req)
	}
}
