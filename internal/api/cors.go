package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// cors mirrors the permissive policy the browser POS client expects:
// any origin, the three verbs this service exposes, and a Content-Type
// allowance so JSON bodies aren't blocked by a preflight.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
