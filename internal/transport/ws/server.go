package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"wcp-bridge/server/internal/platform/logging"
	"wcp-bridge/server/internal/transport"
)

// Server manages WebSocket connections.
type Server struct {
	Handler  transport.Handler
	Opts     transport.Options
	Upgrader websocket.Upgrader

	// ctx bounds every conversation; cancelling it disconnects all clients.
	ctx context.Context
}

// NewServer creates a new WebSocket server.
func NewServer(ctx context.Context, h transport.Handler, opts transport.Options) *Server {
	if opts.Name == "" {
		opts.Name = "ws"
	}
	return &Server{
		Handler: h,
		Opts:    opts,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local tooling connects from arbitrary origins
			},
		},
		ctx: ctx,
	}
}

// ServeHTTP handles the WebSocket handshake and connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Component(s.Opts.Name).WithError(err).Warn("upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	_ = transport.Serve(ctx, NewHandler(conn), s.Handler, s.Opts)
}
