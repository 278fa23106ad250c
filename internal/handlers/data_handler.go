package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"topic_importer/internal/models"
	"topic_importer/internal/responses"
	"topic_importer/internal/services"
	"topic_importer/internal/utils"
)

type DataHandler struct {
	dataService     DataManager
	rollbackService RollbackRunner
}

func NewDataHandler(dataService DataManager, rollbackService RollbackRunner) *DataHandler {
	return &DataHandler{dataService: dataService, rollbackService: rollbackService}
}

func (h *DataHandler) QueryData(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	res, err := h.dataService.QueryData(c.Request.Context(), userID, topicID, services.QueryParams{
		Page:      utils.IntOr(c.Query("page"), 1),
		Limit:     utils.IntOr(c.Query("limit"), 10),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Filters:   c.Query("filters"),
	}, c.ClientIP())
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, http.StatusOK, res, "")
}

func (h *DataHandler) DeleteRecords(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		RecordIDs []any `json:"recordIds"`
	}
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	out, err := h.dataService.DeleteRecords(c.Request.Context(), userID, topicID, recordKeys(req.RecordIDs), c.ClientIP())
	if err != nil {
		responses.FromError(c, err)
		return
	}

	if out.Partial() {
		responses.Partial(c, http.StatusMultiStatus, out, "Deletion completed with some errors.")
		return
	}
	responses.Success(c, http.StatusOK, out, "Records deleted successfully.")
}

func (h *DataHandler) Rollback(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		DeletionLogIDs  []uuid.UUID `json:"deletionLogIds"`
		DeletionBatchID *uuid.UUID  `json:"deletionBatchId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	out, err := h.rollbackService.Rollback(c.Request.Context(), userID, topicID, models.RollbackSelector{
		DeletionLogIDs:  req.DeletionLogIDs,
		DeletionBatchID: req.DeletionBatchID,
	}, c.ClientIP())
	if err != nil {
		responses.FromError(c, err)
		return
	}

	if out.Partial() {
		responses.Partial(c, http.StatusMultiStatus, out, "Rollback completed with some errors.")
		return
	}
	responses.Success(c, http.StatusOK, out, "Records restored successfully.")
}

// decodeJSON keeps numbers as json.Number so large integer keys survive.
func decodeJSON(body io.Reader, v any) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// recordKeys turns decoded ids into driver values: whole numbers become int64,
// everything else is passed as its string form.
func recordKeys(ids []any) []any {
	keys := make([]any, 0, len(ids))
	for _, id := range ids {
		switch v := id.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				keys = append(keys, n)
			} else {
				keys = append(keys, v.String())
			}
		case string:
			keys = append(keys, strings.TrimSpace(v))
		case nil:
			continue
		default:
			keys = append(keys, v)
		}
	}
	return keys
}
