package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/minify-io/url-minifier/internal/middleware"
	"github.com/minify-io/url-minifier/internal/service"
	"go.uber.org/zap"
)

func NewRouter(
	links service.LinkService,
	clicks service.ClickService,
	resolver service.RedirectResolver,
	rateLimiter *middleware.RateLimiter,
	apiKeyMiddleware gin.HandlerFunc,
	baseURL string,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware для логгирования
	if logger != nil {
		router.Use(func(c *gin.Context) {
			logger.Info("Request",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			c.Next()
		})
	} else {
		logger = zap.NewNop()
	}

	// Rate limiting для всех запросов
	if rateLimiter != nil {
		router.Use(rateLimiter.Middleware())
	}

	linkHandler := NewLinkHandler(links, clicks, resolver, baseURL, logger)

	// API v.1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)

		// API Key middleware только для защищённых эндпоинтов
		if apiKeyMiddleware != nil {
			v1.Use(apiKeyMiddleware)
		}

		v1.POST("/links", linkHandler.CreateLinks)
		v1.GET("/links", linkHandler.SearchLinks)
		v1.GET("/links/:id", linkHandler.GetLink)
		v1.PUT("/links/:id", linkHandler.UpdateLink)
		v1.DELETE("/links/:id", linkHandler.DeleteLink)
		v1.GET("/links/:id/clicks", linkHandler.ListClicks)
	}

	// Редирект (корневой путь) - без API key проверки.
	// Хвост пути после кода превращается в позиционные аргументы шаблона.
	router.GET("/:code", linkHandler.Redirect)
	router.GET("/:code/*args", linkHandler.Redirect)

	// Swagger документация (без аутентификации)
	AddSwaggerRoutes(router)

	return router
}
