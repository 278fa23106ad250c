package responses

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/logger"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func JSON(c *gin.Context, statusCode int, status string, data any, message string, err error) {
	response := APIResponse{
		Status:  status,
		Message: message,
		Data:    data,
	}

	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(statusCode, response)
}

func Success(c *gin.Context, statusCode int, data any, message string) {
	c.JSON(statusCode, APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// Partial is used for 207 responses: the request was carried out with errors.
func Partial(c *gin.Context, statusCode int, data any, message string) {
	c.JSON(statusCode, APIResponse{
		Status:  "partial",
		Message: message,
		Data:    data,
	})
}

func Fail(c *gin.Context, statusCode int, err error, message string) {
	resp := APIResponse{
		Status:  "error",
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(statusCode, resp)
}

// FromError writes err with the status its kind maps to. Unclassified errors
// are logged and answered with a generic message.
func FromError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	resp := APIResponse{
		Status:  "error",
		Message: apperrors.Message(err),
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		resp.Code = appErr.Code
	}
	if status >= 500 {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": status,
		}).Error("request failed")
	}
	c.JSON(status, resp)
}
