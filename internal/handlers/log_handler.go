package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"topic_importer/internal/models"
	"topic_importer/internal/responses"
	"topic_importer/internal/utils"
)

type LogHandler struct {
	logService LogReader
}

func NewLogHandler(logService LogReader) *LogHandler {
	return &LogHandler{logService: logService}
}

// MyImportLogs lists the caller's imports, newest first unless sortOrder=asc.
func (h *LogHandler) MyImportLogs(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	filter, ok := importLogFilter(c, 10)
	if !ok {
		return
	}
	filter.UserID = userID

	page, err := h.logService.MyImportLogs(c.Request.Context(), userID, filter, utils.IntOr(c.Query("page"), 1))
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, page, "")
}

// ImportLogs lists every user's imports. userId narrows it to one user.
func (h *LogHandler) ImportLogs(c *gin.Context) {
	filter, ok := importLogFilter(c, 20)
	if !ok {
		return
	}
	if raw := c.Query("userId"); raw != "" {
		id, err := utils.ParseUUID(raw)
		if err != nil {
			responses.Fail(c, http.StatusBadRequest, err, "Invalid userId")
			return
		}
		filter.UserID = id
	}

	page, err := h.logService.ImportLogs(c.Request.Context(), filter, utils.IntOr(c.Query("page"), 1))
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, page, "")
}

// SystemLogs pages through the audit trail, newest first unless sortOrder=asc.
func (h *LogHandler) SystemLogs(c *gin.Context) {
	filter := models.SystemLogFilter{
		ActionType: strings.TrimSpace(c.Query("actionType")),
		Status:     strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		SortDesc:   !strings.EqualFold(c.Query("sortOrder"), "asc"),
		Limit:      utils.IntOr(c.Query("limit"), 20),
	}
	if raw := c.Query("userId"); raw != "" {
		id, err := utils.ParseUUID(raw)
		if err != nil {
			responses.Fail(c, http.StatusBadRequest, err, "Invalid userId")
			return
		}
		filter.UserID = &id
	}
	var err error
	if filter.StartDate, err = parseDate(c.Query("startDate")); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid startDate")
		return
	}
	if filter.EndDate, err = parseDate(c.Query("endDate")); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid endDate")
		return
	}

	page, err := h.logService.SystemLogs(c.Request.Context(), filter, utils.IntOr(c.Query("page"), 1))
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, page, "")
}

// importLogFilter reads the shared import log query parameters. It writes the
// 400 response itself and reports false on a bad parameter.
func importLogFilter(c *gin.Context, defaultLimit int) (models.ImportLogFilter, bool) {
	filter := models.ImportLogFilter{
		SortDesc: !strings.EqualFold(c.Query("sortOrder"), "asc"),
		Limit:    utils.IntOr(c.Query("limit"), defaultLimit),
	}
	if raw := c.Query("topicId"); raw != "" {
		id, err := utils.ParseUUID(raw)
		if err != nil {
			responses.Fail(c, http.StatusBadRequest, err, "Invalid topicId")
			return filter, false
		}
		filter.TopicID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := models.ImportStatus(strings.ToUpper(raw))
		if !status.Valid() {
			responses.Fail(c, http.StatusBadRequest, nil, "Invalid status")
			return filter, false
		}
		filter.Status = &status
	}
	var err error
	if filter.StartDate, err = parseDate(c.Query("startDate")); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid startDate")
		return filter, false
	}
	if filter.EndDate, err = parseDate(c.Query("endDate")); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid endDate")
		return filter, false
	}
	return filter, true
}

func (h *LogHandler) FailedRows(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	logID, ok := pathUUID(c, "logId")
	if !ok {
		return
	}

	rows, err := h.logService.FailedRows(c.Request.Context(), userID, logID, utils.IntOr(c.Query("limit"), 100))
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, rows, "")
}

func (h *LogHandler) DeletionLogs(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	filter := models.DeletionLogFilter{
		TopicID:  topicID,
		SortDesc: !strings.EqualFold(c.Query("sortOrder"), "asc"),
		Limit:    utils.IntOr(c.Query("limit"), 0),
	}
	if raw := c.Query("isRolledBack"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			responses.Fail(c, http.StatusBadRequest, err, "isRolledBack must be true or false")
			return
		}
		filter.IsRolledBack = &v
	}

	logs, err := h.logService.DeletionLogs(c.Request.Context(), userID, filter)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, logs, "")
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
