package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"topic_importer/internal/responses"
	"topic_importer/internal/services"
)

type UserHandler struct {
	userService UserCreator
}

func NewUserHandler(userService UserCreator) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Please provide an email and password")
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), actorID, req)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusCreated, user, "User created successfully")
}
