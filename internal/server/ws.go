// ABOUTME: WebSocket stream of live solar time updates
// ABOUTME: Each connection subscribes to the provider until the client goes away

package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/harper/shichen/internal/solar"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsBuffer       = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GET /ws
func (s *Server) handleWebSocket(c *gin.Context) {
	if s.cfg.Provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no provider configured"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	updates := make(chan solar.SolarTimeData, wsBuffer)
	unsubscribe := s.cfg.Provider.Subscribe(func(d solar.SolarTimeData) {
		select {
		case updates <- d:
		default:
			s.log.Debug("websocket client lagging, dropping update")
		}
	})
	defer unsubscribe()

	// The read loop only notices the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.log.Debug("websocket client connected", "client", c.ClientIP())
	for {
		select {
		case <-closed:
			s.log.Debug("websocket client disconnected", "client", c.ClientIP())
			return
		case <-c.Request.Context().Done():
			return
		case d := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(d); err != nil {
				s.log.Debug("websocket write failed", "err", err)
				return
			}
		}
	}
}
