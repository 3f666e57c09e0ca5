package handler

import (
	"github.com/gin-gonic/gin"
)

// AddSwaggerRoutes регистрирует раздачу Swagger-документации
func AddSwaggerRoutes(router *gin.Engine) {
	router.StaticFile("/docs", "./docs/swagger-ui.html")
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
}
