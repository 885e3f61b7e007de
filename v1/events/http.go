package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// SSEHandler streams lock events over Server-Sent Events. The watched key is
// taken from the "key" query parameter; omit it to watch every lock.
func SSEHandler(s *Stream) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		ctx, cancel := context.WithCancel(r.Context())
		ch, err := s.Watch(ctx, key)
		if err != nil {
			cancel()
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer func() {
			cancel()
			_ = s.Unwatch(context.Background(), key, ch)
		}()
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "stream unsupported", http.StatusInternalServerError)
			return
		}
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
					return
				}
				flusher.Flush()
			case <-ctx.Done():
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{}

// WebSocketHandler streams lock events over WebSocket, one JSON event per
// text message. The watched key is taken from the "key" query parameter.
func WebSocketHandler(s *Stream) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		ctx, cancel := context.WithCancel(r.Context())
		ch, err := s.Watch(ctx, key)
		if err != nil {
			cancel()
			return
		}
		defer func() {
			cancel()
			_ = s.Unwatch(context.Background(), key, ch)
		}()
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
