package pubsub

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

// ServeWS upgrades the request and writes every value received on ch as JSON
// until the client goes away or ch is closed. cancel is always called before
// returning, which is the subscriber's explicit unsubscribe.
func ServeWS[T any](w http.ResponseWriter, r *http.Request, ch <-chan T, cancel func(), initial ...T) {
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// reads only detect the close frame; clients never send data
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, v := range initial {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(v); err != nil {
			return
		}
	}

	for {
		select {
		case <-done:
			return
		case v, ok := <-ch:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				zap.L().Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
