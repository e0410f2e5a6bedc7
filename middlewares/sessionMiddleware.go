package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/payroll_backend/appctx"
	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionMiddleware resolves the legacy token header against redis and tags
// every request with a correlation id. The correlation id rides on all outbox
// events emitted while handling the request.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationId := c.Request.Header.Get("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx := appctx.Set(c.Request.Context(), appctx.ContextKeyCorrelationId, correlationId)
		c.Writer.Header().Set("X-Correlation-Id", correlationId)

		token := c.Request.Header.Get("token")
		if token != "" {
			username, exists, err := config.GetRedisValue("Token:" + token)
			if err != nil || !exists {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}
			ctx = appctx.Set(ctx, appctx.ContextKeyToken, token)
			ctx = appctx.Set(ctx, appctx.ContextKeyUsername, username)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
