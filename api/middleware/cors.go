package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS returns middleware applying the permissive cross-origin policy
// every response carries. The relay serves scraping clients from
// arbitrary origins; there is nothing origin-specific to protect.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
