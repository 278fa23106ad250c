package routes

import (
	"github.com/gin-gonic/gin"

	"topic_importer/internal/handlers"
)

type UserRoutes struct {
	handler *handlers.UserHandler
	guards  Guards
}

func NewUserRoutes(handler *handlers.UserHandler, guards Guards) *UserRoutes {
	return &UserRoutes{handler: handler, guards: guards}
}

func (r *UserRoutes) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	users.Use(r.guards.Auth, r.guards.Admin)
	{
		users.POST("", r.handler.CreateUser)
	}
}
