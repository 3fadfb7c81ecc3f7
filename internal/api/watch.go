package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const watchPollInterval = time.Second

// WatchLogin handles GET /v1/auth/login/{id}/watch: it upgrades to a
// websocket and pushes a status snapshot whenever the session changes,
// closing once the session goes terminal or disappears.
func (h *Handler) WatchLogin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	snap, err := h.mgr.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Detect client disconnect; the client is not expected to send anything.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last := toResponse(snap)
	if err := conn.WriteJSON(last); err != nil {
		return
	}
	if snap.State.Terminal() {
		return
	}

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snap, err := h.mgr.Get(id)
			if err != nil {
				// Session cancelled or swept.
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session removed"),
					time.Now().Add(time.Second))
				return
			}
			resp := toResponse(snap)
			if resp != last {
				if err := conn.WriteJSON(resp); err != nil {
					return
				}
				last = resp
			}
			if snap.State.Terminal() {
				return
			}
		}
	}
}
