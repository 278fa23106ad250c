package routes

import (
	"github.com/gin-gonic/gin"

	"topic_importer/internal/handlers"
)

type ImportLogRoutes struct {
	handler *handlers.LogHandler
	guards  Guards
}

func NewImportLogRoutes(handler *handlers.LogHandler, guards Guards) *ImportLogRoutes {
	return &ImportLogRoutes{handler: handler, guards: guards}
}

func (r *ImportLogRoutes) RegisterRoutes(router *gin.RouterGroup) {
	logs := router.Group("/import-logs")
	logs.Use(r.guards.Auth)
	{
		logs.GET("/me", r.handler.MyImportLogs)
		logs.GET("/:logId/failed-rows", r.handler.FailedRows)
	}

	admin := router.Group("/admin")
	admin.Use(r.guards.Auth, r.guards.Admin)
	{
		admin.GET("/import-logs", r.handler.ImportLogs)
		admin.GET("/system-logs", r.handler.SystemLogs)
	}
}
