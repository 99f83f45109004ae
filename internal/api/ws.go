package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reika/escpos-bridge/internal/logger"
	"github.com/reika/escpos-bridge/internal/status"
	bridgews "github.com/reika/escpos-bridge/internal/websocket"
)

// upgrader accepts any origin: the GUI shell is a local system-tray
// process, not a browser page subject to same-origin concerns.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades GET /ws/status into a connectivity feed for the GUI
// shell, registering the new connection with hub and seeding it with the
// broadcaster's current snapshot.
func WSHandler(hub *bridgews.Hub, st *status.Broadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("gui websocket upgrade failed", zap.Error(err))
			return
		}

		client := bridgews.NewClient(hub, conn)
		hub.Register(client, st.Snapshot())

		go client.WritePump()
		client.ReadPump()
	}
}
