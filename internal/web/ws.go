package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// handleFeedWS handles GET /api/feed/ws - streams the first feed page, then
// a fresh page every time a video changes.
func (s *server) handleFeedWS(w http.ResponseWriter, r *http.Request) {
	limit := feedLimit(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	pages, err := s.store.Watch(ctx, limit)
	if err != nil {
		slog.Error("failed to watch feed", "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "watch failed"),
			time.Now().Add(wsWriteTimeout))
		return
	}

	// Drain the connection so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case page, ok := <-pages:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(feedResponse{
				Data:    page,
				Limit:   limit,
				HasMore: len(page) == limit,
			}); err != nil {
				slog.Debug("websocket write failed, closing", "error", err)
				return
			}
		}
	}
}
