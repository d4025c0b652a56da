package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moonlitgames/werewolf-backend/internal/pubsub"
)

// Handler subscribes a client to its room topic and streams broadcast
// messages. Intents travel over HTTP, not this socket; the read side only
// drains control frames and detects the close.
func Handler(h *pubsub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := r.URL.Query().Get("room")
		if room == "" {
			http.Error(w, "missing room", http.StatusBadRequest)
			return
		}
		clientID := r.URL.Query().Get("uid")
		if clientID == "" {
			clientID = uuid.NewString()
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := h.Subscribe(room, clientID)
		defer h.Unsubscribe(room, clientID)

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Error("marshal broadcast", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			// Nothing meaningful arrives on this side; reading keeps the
			// connection serviced and tells us when the peer goes away.
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}
}
