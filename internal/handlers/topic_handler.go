package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"topic_importer/internal/responses"
	"topic_importer/internal/services"
)

type TopicHandler struct {
	topicService      TopicManager
	permissionService PermissionGranter
}

func NewTopicHandler(topicService TopicManager, permissionService PermissionGranter) *TopicHandler {
	return &TopicHandler{topicService: topicService, permissionService: permissionService}
}

func (h *TopicHandler) CreateTopic(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid topic definition")
		return
	}

	topic, err := h.topicService.Create(c.Request.Context(), actorID, req)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusCreated, topic, "Topic created successfully")
}

func (h *TopicHandler) ListTopics(c *gin.Context) {
	topics, err := h.topicService.List(c.Request.Context())
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, topics, "")
}

// ListAvailable returns the topics the caller holds any permission on.
func (h *TopicHandler) ListAvailable(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	topics, err := h.topicService.ListAvailable(c.Request.Context(), userID)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, topics, "")
}

func (h *TopicHandler) GetTopic(c *gin.Context) {
	topicID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	topic, err := h.topicService.Get(c.Request.Context(), topicID)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, topic, "")
}

func (h *TopicHandler) UpdateTopic(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid topic update")
		return
	}

	topic, err := h.topicService.Update(c.Request.Context(), actorID, topicID, req)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, topic, "Topic updated successfully")
}

func (h *TopicHandler) DeleteTopic(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.topicService.Delete(c.Request.Context(), actorID, topicID); err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, nil, "Topic deleted successfully")
}

func (h *TopicHandler) ProvisionTopic(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.topicService.Provision(c.Request.Context(), actorID, topicID); err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, nil, "Target table is ready")
}

func (h *TopicHandler) GrantPermission(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid permission payload")
		return
	}

	perm, err := h.permissionService.Grant(c.Request.Context(), actorID, topicID, req)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, perm, "Permission saved")
}

func (h *TopicHandler) ListPermissions(c *gin.Context) {
	topicID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	perms, err := h.permissionService.ListByTopic(c.Request.Context(), topicID)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, perms, "")
}
