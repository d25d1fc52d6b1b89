package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Hub keeps the live websocket connections dispatch reports are pushed to.
type Hub interface {
	AddConnection(owner string, conn *websocket.Conn) bool
	RemoveConnection(owner string, conn *websocket.Conn)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and keeps the connection registered until the
// client goes away. Clients only receive; anything they send is discarded.
func (h *Handler) ServeWS(c *gin.Context) {
	owner := ownerOf(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade for %s failed: %v", owner, err)
		return
	}
	if !h.deps.Hub.AddConnection(owner, conn) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections"))
		_ = conn.Close()
		return
	}
	defer func() {
		h.deps.Hub.RemoveConnection(owner, conn)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
