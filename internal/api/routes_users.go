package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/notely/internal/handlers"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.AuthHandler, limit gin.HandlerFunc) {
	users := api.Group("/users")
	users.Use(limit)
	{
		users.POST("/signup", handler.Signup)
		users.POST("/login", handler.Login)
		users.POST("/verify-otp", handler.VerifyOTP)
		users.POST("/federated-login", handler.FederatedLogin)
	}
}
