package routes

import (
	"github.com/gin-gonic/gin"

	"topic_importer/internal/handlers"
)

type AuthRoutes struct {
	handler *handlers.AuthHandler
	guards  Guards
}

func NewAuthRoutes(handler *handlers.AuthHandler, guards Guards) *AuthRoutes {
	return &AuthRoutes{handler: handler, guards: guards}
}

func (r *AuthRoutes) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/login", r.handler.Login)
	}

	users := router.Group("/users")
	users.Use(r.guards.Auth)
	{
		users.GET("/me", r.handler.Me)
	}
}
