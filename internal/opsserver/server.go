// Package opsserver exposes the gateway's operational endpoints: liveness,
// readiness, a status snapshot, a WebSocket stream of status changes and
// Prometheus metrics.
package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	pbgateway "github.com/yuanzhaoK/admin-platform-sub000"
	"github.com/yuanzhaoK/admin-platform-sub000/pkg/notify"
)

const (
	shutdownTimeout = 5 * time.Second
	writeWait       = 10 * time.Second
	pingPeriod      = 30 * time.Second
)

// StatusSource is the part of *pbgateway.Client the server reads.
type StatusSource interface {
	ConnectionStatus() pbgateway.Status
	Session() pbgateway.SessionInfo
}

// Subscriber hands out status change streams; *notify.Hub implements it.
type Subscriber interface {
	Subscribe() (<-chan notify.StatusChange, func())
}

// Message is one frame on /status/ws. The first frame is a snapshot, every
// later frame a change.
type Message struct {
	Type    string                 `json:"type"`
	Session *pbgateway.SessionInfo `json:"session,omitempty"`
	Change  *notify.StatusChange   `json:"change,omitempty"`
}

type Server struct {
	source StatusSource
	subs   Subscriber
	logger zerolog.Logger

	upgrader websocket.Upgrader
	router   *mux.Router
}

func New(source StatusSource, subs Subscriber, logger zerolog.Logger) *Server {
	s := &Server{
		source: source,
		subs:   subs,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/status/ws", s.handleStatusWS).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router = r

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	s.logger.Info().Str("addr", addr).Msg("ops server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	status := s.source.ConnectionStatus()
	if status != pbgateway.StatusConnected {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(status.String()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.source.Session()); err != nil {
		s.logger.Debug().Err(err).Msg("write status")
	}
}

func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	changes, unsubscribe := s.subs.Subscribe()
	defer unsubscribe()

	// The read loop only notices the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshot := s.source.Session()
	if err := s.write(conn, Message{Type: "snapshot", Session: &snapshot}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case change, ok := <-changes:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := s.write(conn, Message{Type: "change", Change: &change}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			s.logger.Debug().Err(err).Msg("websocket write failed")
		}
		return err
	}
	return nil
}
