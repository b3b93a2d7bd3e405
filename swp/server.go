package swp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/converged-computing/flux-mcp-server/id"
)

// Server accepts SWP WebSocket connections. It implements http.Handler
// so it can be mounted on any mux.
type Server struct {
	handler *Handler
	auth    Authenticator
	conns   *ConnectionManager
	logger  *slog.Logger
}

var _ http.Handler = (*Server)(nil)

// Option configures an SWP Server.
type Option func(*Server)

// WithAuth sets the authenticator for the server.
// If not set, NoopAuthenticator is used (development mode).
func WithAuth(auth Authenticator) Option {
	return func(s *Server) { s.auth = auth }
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a new SWP server.
func NewServer(handler *Handler, opts ...Option) *Server {
	s := &Server{
		handler: handler,
		conns:   NewConnectionManager(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auth == nil {
		s.auth = &NoopAuthenticator{}
	}
	return s
}

// Connections returns the connection manager.
func (s *Server) Connections() *ConnectionManager { return s.conns }

// ServeHTTP upgrades the request to WebSocket and serves frames until
// the peer disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	// The request context dies when ServeHTTP returns; the hijacked
	// connection outlives it.
	ctx := context.WithoutCancel(r.Context())
	go func() {
		defer func() { _ = conn.Close() }()
		if serveErr := s.serveConn(ctx, conn); serveErr != nil {
			s.logger.Debug("connection ended", slog.String("error", serveErr.Error()))
		}
	}()
}

// serveConn handles the auth handshake and the frame loop for one
// connection.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) error {
	connID := id.NewSessionID().String()

	// Wait for the auth frame. The first frame must be auth; anything
	// else ends the connection.
	authData, err := wsutil.ReadClientText(conn)
	if err != nil {
		return fmt.Errorf("swp: read auth frame: %w", err)
	}

	var authFrame Frame
	if err := json.Unmarshal(authData, &authFrame); err != nil {
		s.writeFrame(conn, NewErrorFrame("", ErrCodeBadRequest, "invalid auth frame"))
		return fmt.Errorf("swp: unmarshal auth frame: %w", err)
	}

	if authFrame.Method != MethodAuth {
		s.writeFrame(conn, NewErrorFrame(authFrame.ID, ErrCodeBadRequest, "first frame must be auth"))
		return fmt.Errorf("swp: expected auth frame, got %q", authFrame.Method)
	}

	var authReq AuthRequest
	if len(authFrame.Data) > 0 {
		if err := json.Unmarshal(authFrame.Data, &authReq); err != nil {
			s.writeFrame(conn, NewErrorFrame(authFrame.ID, ErrCodeBadRequest, "invalid auth data"))
			return fmt.Errorf("swp: unmarshal auth data: %w", err)
		}
	}

	token := authReq.Token
	if token == "" {
		token = authFrame.Token
	}
	identity, authErr := s.auth.Authenticate(ctx, token)
	if authErr != nil {
		s.writeFrame(conn, NewErrorFrame(authFrame.ID, ErrCodeUnauthorized, "authentication failed"))
		return fmt.Errorf("swp: auth failed: %w", authErr)
	}

	swpConn := NewConnection(connID, identity)
	s.conns.Add(swpConn)
	defer func() {
		s.conns.Remove(connID)
		s.logger.Info("disconnected", slog.String("conn_id", connID))
	}()

	resp, respErr := NewResponseFrame(authFrame.ID, AuthResponse{SessionID: connID})
	if respErr != nil {
		return fmt.Errorf("swp: marshal auth response: %w", respErr)
	}
	s.writeFrame(conn, resp)

	s.logger.Info("authenticated",
		slog.String("conn_id", connID),
		slog.String("subject", identity.Subject),
	)

	// Frame processing loop.
	for {
		data, readErr := wsutil.ReadClientText(conn)
		if readErr != nil {
			return nil // Connection closed.
		}

		swpConn.Touch()

		var frame Frame
		if decErr := json.Unmarshal(data, &frame); decErr != nil {
			s.writeFrame(conn, NewErrorFrame("", ErrCodeBadRequest, "invalid frame: "+decErr.Error()))
			continue
		}

		// Handle ping/pong.
		if frame.Type == FramePing {
			s.writeFrame(conn, &Frame{
				ID:        GenerateFrameID(),
				Type:      FramePong,
				CorrelID:  frame.ID,
				Timestamp: frame.Timestamp,
			})
			continue
		}

		// Check authorization for the method.
		if frame.Method != "" {
			reqScope := RequiredScope(frame.Method)
			if reqScope != "" && !identity.HasScope(reqScope) {
				s.writeFrame(conn, NewErrorFrame(frame.ID, ErrCodeForbidden, "insufficient permissions"))
				continue
			}
		}

		if respFrame := s.handler.Handle(ctx, &frame, swpConn); respFrame != nil {
			s.writeFrame(conn, respFrame)
		}
	}
}

// writeFrame encodes and writes a frame, logging failures. Writes are
// best effort: a failed write surfaces on the next read as a closed
// connection.
func (s *Server) writeFrame(conn net.Conn, frame *Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Warn("marshal frame", slog.String("error", err.Error()))
		return
	}
	if err := wsutil.WriteServerText(conn, data); err != nil {
		s.logger.Warn("write frame", slog.String("error", err.Error()))
	}
}
