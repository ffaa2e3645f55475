package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/notely/internal/handlers"
)

func registerNoteRoutes(api *gin.RouterGroup, handler *handlers.NoteHandler, requireAuth, limit gin.HandlerFunc) {
	notes := api.Group("/notes")
	notes.Use(limit, requireAuth)
	{
		notes.GET("", handler.List)
		notes.POST("", handler.Create)
		notes.GET("/:id", handler.Get)
		notes.PUT("/:id", handler.Update)
		notes.DELETE("/:id", handler.Delete)
		notes.PATCH("/:id/pin", handler.TogglePin)
	}
}
