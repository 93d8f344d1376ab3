package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/errors"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from a separate origin
	},
}

// handleStream serves the SSE transport. The handler parks until either the
// client goes away or the hub closes the connection; all frames flow through
// the hub's writer goroutine.
func (s *Server) handleStream(c echo.Context) error {
	w := c.Response()
	flusher, ok := w.Writer.(http.Flusher)
	if !ok {
		return errors.InternalError("streaming unsupported", nil)
	}

	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sink := newSSESink(w, flusher)
	conn, err := s.hub.Subscribe(sink)
	if err != nil {
		slog.Warn("Stream subscription rejected", "transport", "sse", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "too many open streams")
	}
	metrics.StreamConnectionsTotal.WithLabelValues("sse").Inc()

	// The opening ping commits the response headers. Clients only see a
	// live stream once the subscription is registered, so no event
	// published after this point can be missed.
	if err := sink.Ping(); err != nil {
		s.hub.Unsubscribe(conn)
		<-conn.Done()
		return nil
	}
	slog.Info("Stream connected", "transport", "sse", "connection_id", conn.ID())

	select {
	case <-c.Request().Context().Done():
		s.hub.Unsubscribe(conn)
	case <-conn.Done():
	}
	// The writer goroutine must be finished with the ResponseWriter before
	// the handler returns.
	<-conn.Done()

	slog.Info("Stream disconnected", "transport", "sse", "connection_id", conn.ID())
	return nil
}

// handleWebSocket serves the websocket transport.
func (s *Server) handleWebSocket(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade websocket: %w", err)
	}

	sink := newWSSink(ws)
	conn, err := s.hub.Subscribe(sink)
	if err != nil {
		slog.Warn("Stream subscription rejected", "transport", "websocket", "error", err)
		return nil
	}
	metrics.StreamConnectionsTotal.WithLabelValues("websocket").Inc()
	slog.Info("Stream connected", "transport", "websocket", "connection_id", conn.ID())

	// Read pump. Observers never send application frames, but reading
	// surfaces disconnects and services control frames.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unsubscribe(conn)
	slog.Info("Stream disconnected", "transport", "websocket", "connection_id", conn.ID())
	return nil
}
