package api

import "github.com/gin-gonic/gin"

// registerOpenAPIRoutes serves the static OpenAPI document that backs the
// swagger-ui build (registerSwaggerRoutes points ginSwagger at this path).
func registerOpenAPIRoutes(engine *gin.Engine) {
	engine.GET("/openapi.yaml", func(c *gin.Context) {
		c.Header("Content-Type", "application/yaml; charset=utf-8")
		c.File("docs/api/openapi.yaml")
	})
}
