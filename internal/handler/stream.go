package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/broadcast"
)

// StreamSource hands out bounded subscriptions to the score update stream.
type StreamSource interface {
	Subscribe() *broadcast.Subscriber
	Unsubscribe(id string)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dashboards connect cross-origin; auth is handled upstream.
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// streamUpdates handles GET /stream: upgrades to a websocket and forwards
// metric updates until the client goes away. A slow client's buffer drops
// oldest updates in the hub; the write loop here never blocks the pipeline.
func (h *QueryHandler) streamUpdates(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade stream connection", zap.Error(err))
		return
	}

	sub := h.stream.Subscribe()
	defer h.stream.Unsubscribe(sub.ID)
	defer conn.Close()

	// Reader goroutine only detects closure; inbound frames are ignored.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case update, ok := <-sub.Updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(update); err != nil {
				h.log.Debug("Stream write failed, closing subscriber",
					zap.String("subscriber_id", sub.ID),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
