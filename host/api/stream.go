package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamBuffer    = 64
	streamWriteWait = 5 * time.Second
	streamPingEvery = 30 * time.Second
)

// handleStream upgrades to a websocket and sends the current snapshot
// followed by one JSON message per cache change.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := s.cache.Subscribe(streamBuffer)
	defer cancel()

	// Reader goroutine only detects the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, u := range s.cache.Updates() {
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(u.Entry()); err != nil {
			return
		}
	}

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(u.Entry()); err != nil {
				s.log.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
