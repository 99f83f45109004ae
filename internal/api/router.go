package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reika/escpos-bridge/internal/logger"
	"github.com/reika/escpos-bridge/internal/status"
	bridgews "github.com/reika/escpos-bridge/internal/websocket"
)

// Router wires the bridge's gin engine: recovery, structured request
// logging, permissive CORS, and the four print/status routes.
type Router struct {
	engine *gin.Engine
}

// NewRouter builds a Router bound to engine. gin runs in release mode
// unconditionally: this service has no template rendering or debug
// affordances worth gin's default verbose logging.
func NewRouter(handlers *Handlers, hub *bridgews.Hub, st *status.Broadcaster) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(cors())

	engine.GET("/print/test", handlers.GetPrintTest)
	engine.POST("/print/test", handlers.PostPrintTest)
	engine.POST("/print", handlers.PostPrint)
	engine.POST("/print/reprint", handlers.PostPrintReprint)

	if hub != nil {
		engine.GET("/ws/status", WSHandler(hub, st))
	}

	registerOpenAPIRoutes(engine)
	registerSwaggerRoutes(engine)

	return &Router{engine: engine}
}

// Engine returns the underlying gin engine, e.g. for http.Server wiring.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		logger.GetLogger().Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
