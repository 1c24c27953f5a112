package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	log "github.com/sirupsen/logrus"
)

func accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, context.Context, error) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return nil, nil, err
	}
	return c, r.Context(), nil
}

// StreamEvents pushes availability transitions to a WebSocket client
// until the client disconnects. The current state is sent first.
func StreamEvents(s *Service, w http.ResponseWriter, r *http.Request) {
	c, ctx, err := accept(w, r)
	if err != nil {
		log.Error("Failed to accept client:", err)
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "closing")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, unsub := s.monitor.Subscribe()
	defer unsub()

	// Read side exists only to notice the client going away.
	go func() {
		_, _, err := c.Read(ctx)
		if err != nil {
			cancel()
			log.Debug("WebSocket connection closed by client")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := EventMessage{
				Available:  ev.Available,
				Generation: ev.Generation,
				At:         ev.At,
			}
			b, err := json.Marshal(msg)
			if err != nil {
				log.WithError(err).Error("Failed to encode event")
				continue
			}
			if err := c.Write(ctx, websocket.MessageText, b); err != nil {
				return
			}
		}
	}
}
