// Package server streams tracker events to browser clients over WebSocket and
// accepts control commands from them.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/gorilla/websocket"

	"github.com/RyanBlaney/taptone/pkg/events"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

// Server is the HTTP server of the live event stream
type Server struct {
	addr     string
	bus      *events.Bus
	commands *CommandHandler
	upgrader websocket.Upgrader
	logger   logging.Logger

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
}

func NewServer(addr string, bus *events.Bus, controller Controller, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	logger = logger.WithFields(logging.Fields{"component": "websocket_server"})

	return &Server{
		addr:     addr,
		bus:      bus,
		commands: NewCommandHandler(controller, logger),
		upgrader: newUpgrader(logger),
		logger:   logger,
	}
}

// Handler returns the routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		s.logger.Error(err, "Failed to write health response")
	}
}

// handleWebSocket streams bus events to the client and applies its commands
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error(err, "WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub, cancel := s.bus.Subscribe(subscriberBuffer)
	defer cancel()

	s.logger.Debug("WebSocket client connected", logging.Fields{"remote": r.RemoteAddr})

	replies := make(chan WSReply, 8)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			var cmd WSCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			select {
			case replies <- s.commands.Handle(cmd):
			default:
				s.logger.Warn("Dropping command reply, client not reading", logging.Fields{"command": cmd.Type})
			}
		}
	}()

	write := func(v any) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(v)
	}

	// initial picture
	if err := write(WSReply{Type: "ack", Command: "get_display", Data: s.commands.controller.Display()}); err != nil {
		return
	}

	for {
		select {
		case <-done:
			s.logger.Debug("WebSocket client disconnected", logging.Fields{"remote": r.RemoteAddr})
			return
		case reply := <-replies:
			if err := write(reply); err != nil {
				return
			}
		case ev, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			}
			if err := write(events.Envelope(ev)); err != nil {
				return
			}
		}
	}
}

// Start listens on the configured address and serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("Starting web server", logging.Fields{"addr": ln.Addr().String()})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(err, "Web server shutdown failed")
		}
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(err, "HTTP server error")
		}
	}()

	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.httpSrv = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
