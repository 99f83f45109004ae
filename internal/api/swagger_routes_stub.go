//go:build !swagger

package api

import "github.com/gin-gonic/gin"

// registerSwaggerRoutes is a no-op in the default build.
func registerSwaggerRoutes(engine *gin.Engine) {}
