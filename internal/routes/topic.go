package routes

import (
	"github.com/gin-gonic/gin"

	"topic_importer/internal/handlers"
)

type TopicRoutes struct {
	topics  *handlers.TopicHandler
	imports *handlers.ImportHandler
	data    *handlers.DataHandler
	logs    *handlers.LogHandler
	guards  Guards
}

func NewTopicRoutes(topics *handlers.TopicHandler, imports *handlers.ImportHandler, data *handlers.DataHandler, logs *handlers.LogHandler, guards Guards) *TopicRoutes {
	return &TopicRoutes{topics: topics, imports: imports, data: data, logs: logs, guards: guards}
}

func (r *TopicRoutes) RegisterRoutes(router *gin.RouterGroup) {
	topics := router.Group("/topics")
	topics.Use(r.guards.Auth) // capability checks happen per topic in the services
	{
		topics.GET("/available", r.topics.ListAvailable)
		topics.POST("/:id/import", r.imports.ImportFile)
		topics.GET("/:id/data", r.data.QueryData)
		topics.POST("/:id/data/delete", r.data.DeleteRecords)
		topics.POST("/:id/data/rollback", r.data.Rollback)
		topics.GET("/:id/deletion-logs", r.logs.DeletionLogs)
	}

	admin := router.Group("/topics")
	admin.Use(r.guards.Auth, r.guards.Admin)
	{
		admin.POST("", r.topics.CreateTopic)
		admin.GET("", r.topics.ListTopics)
		admin.GET("/:id", r.topics.GetTopic)
		admin.PUT("/:id", r.topics.UpdateTopic)
		admin.DELETE("/:id", r.topics.DeleteTopic)
		admin.GET("/:id/permissions", r.topics.ListPermissions)
		admin.PUT("/:id/permissions", r.topics.GrantPermission)
		admin.POST("/:id/provision", r.topics.ProvisionTopic)
	}
}
