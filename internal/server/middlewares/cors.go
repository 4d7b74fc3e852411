package middlewares

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the editor plugins to call the API from their own origins.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Paintress-Device-Id", "X-Paintress-Version"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowCredentials: false,
		AllowWebSockets:  true,
	})
}
