package routes

import (
	"context"
	"net/http"
	"time"

	"ecosystia_backend/internal/auth"
	"ecosystia_backend/internal/handlers"
	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/middleware"
	"ecosystia_backend/ws"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether a dependency the service needs is reachable.
type HealthCheck func(ctx context.Context) error

// RegisterRoutes mounts the REST API, the WebSocket streams, /metrics and /healthz.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	wsHandler *ws.WebSocketHandler,
	tokens *auth.TokenManager,
	metricsHandler http.Handler,
	checks map[string]HealthCheck,
) {
	ginRouter.GET("/metrics", gin.WrapH(metricsHandler))
	ginRouter.GET("/healthz", healthz(checks))

	authMW := middleware.AuthMiddleware(tokens)
	api := ginRouter.Group("/api/v1")
	{
		appHandlers.AuthHandler.RegisterRoutes(api)
		appHandlers.NotificationHandler.RegisterRoutes(api, authMW)
		appHandlers.DomainHandler.RegisterRoutes(api, authMW)
	}

	wsHandler.RegisterRoutes(ginRouter)
	logger.Info("Routes registered")
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.CtxWarn(ctx, "Health check failed", "dependency", name, "error", err)
				result[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": result})
	}
}
