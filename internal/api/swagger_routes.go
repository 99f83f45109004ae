//go:build swagger

package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// registerSwaggerRoutes mounts swagger-ui under /swagger, pointed at the
// hand-written OpenAPI document served at /openapi.yaml. Built only with
// -tags swagger, so a production binary never pays for the swagger-ui
// asset bundle unless it's asked for.
func registerSwaggerRoutes(engine *gin.Engine) {
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/openapi.yaml"),
	))
}
