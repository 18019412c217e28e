package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/warsan/imposter-game-backend/internal/registry"
	"github.com/warsan/imposter-game-backend/pkg/types"
)

// Handler upgrades a player connection and bridges it to the gateway and
// the group's session: outbound server events are streamed from the
// subscription channel, inbound client messages become lobby/vote actions.
func Handler(reg *registry.Registry, gw *Gateway, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		groupID := r.URL.Query().Get("group")
		userID := r.URL.Query().Get("user")
		if groupID == "" || userID == "" {
			http.Error(w, "missing group or user", http.StatusBadRequest)
			return
		}
		displayName := r.URL.Query().Get("name")

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID, out := gw.Subscribe(groupID, userID, displayName)
		defer gw.Unsubscribe(groupID, clientID)

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for ev := range out {
				payload, _ := json.Marshal(ev)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("gateway connection dropped",
						zap.String("group", groupID), zap.String("user", userID), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeEvent(r.Context(), conn, types.ServerEvent{Type: "error", Error: "bad json"})
				continue
			}

			switch cm.Type {
			case "chat":
				if !gw.RelayChat(groupID, userID, cm.Text) {
					writeEvent(r.Context(), conn, types.ServerEvent{Type: "notice", Content: "The channel is closed while votes are cast."})
				}

			case "join", "leave", "vote":
				sess := reg.Get(r.Context(), groupID)
				if sess == nil {
					writeEvent(r.Context(), conn, types.ServerEvent{Type: "error", Error: "no active game in this group"})
					continue
				}
				var actErr error
				switch cm.Type {
				case "join":
					actErr = sess.Join(r.Context(), userID)
				case "leave":
					actErr = sess.Leave(r.Context(), userID)
				case "vote":
					actErr = sess.CastVote(r.Context(), userID, cm.Target)
				}
				if actErr != nil {
					// rejected actions go back privately to the actor only
					writeEvent(r.Context(), conn, types.ServerEvent{Type: "error", Error: actErr.Error()})
				}

			default:
				writeEvent(r.Context(), conn, types.ServerEvent{Type: "error", Error: "unknown type"})
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev types.ServerEvent) {
	payload, _ := json.Marshal(ev)
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
