// Package server exposes the dashboard state over HTTP and a websocket
// event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fundboard/pkg/logging"
	"fundboard/pkg/utils"
	"fundboard/pkg/watcher"
)

// RefreshDebounce collapses bursts of refresh requests.
var RefreshDebounce = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	watcher *watcher.Watcher
	logger  *zap.Logger
	clients map[string]*websocket.Conn
	mu      sync.Mutex
	router  chi.Router
	refresh func()
}

func NewServer(w *watcher.Watcher, logger *zap.Logger) *Server {
	s := &Server{
		watcher: w,
		logger:  logging.OrNop(logger),
		clients: make(map[string]*websocket.Conn),
		refresh: utils.Debounce(w.Refresh, RefreshDebounce),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)

	r.Get("/api/status", s.handleStatus)
	r.Post("/api/wallet/connect", s.handleConnect)
	r.Post("/api/wallet/disconnect", s.handleDisconnect)
	r.Post("/api/refresh", s.handleRefresh)
	r.Get("/ws", s.handleWS)
	s.router = r
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.Listen(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("API server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Listen forwards watcher events to websocket clients until ctx is done.
func (s *Server) Listen(ctx context.Context) {
	sub := s.watcher.Subscribe()
	go func() {
		defer s.watcher.Unsubscribe(sub)
		for {
			select {
			case event := <-sub:
				s.broadcast(event)
			case <-ctx.Done():
				s.closeClients()
				return
			}
		}
	}()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.watcher.Snapshot())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	st := s.watcher.Session().Connect(r.Context())
	status := http.StatusOK
	if !st.IsConnected || st.Error != "" {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, st)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	st := s.watcher.Session().Disconnect(r.Context())
	status := http.StatusOK
	if st.Error != "" {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, st)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.watcher.Session().State().IsConnected {
		writeError(w, http.StatusConflict, watcher.ErrNotConnected.Error())
		return
	}
	s.refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	id := uuid.NewString()
	s.mu.Lock()
	s.clients[id] = conn
	err = conn.WriteJSON(map[string]interface{}{
		"type":      "initial",
		"client_id": id,
		"data":      s.watcher.Snapshot(),
	})
	s.mu.Unlock()
	if err != nil {
		s.removeClient(id)
		return
	}
	s.logger.Debug("Websocket client connected", zap.String("client_id", id))

	defer s.removeClient(id)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
}

func (s *Server) broadcast(event watcher.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			s.logger.Debug("Dropping websocket client", zap.String("client_id", id), zap.Error(err))
			_ = client.Close()
			delete(s.clients, id)
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, client := range s.clients {
		_ = client.Close()
		delete(s.clients, id)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
