package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"topic_importer/internal/logger"
	"topic_importer/internal/parser"
	"topic_importer/internal/responses"
	"topic_importer/internal/services"
)

const importFileField = "importFile"

type ImportHandler struct {
	importService  Importer
	uploadDir      string
	maxUploadBytes int64
}

func NewImportHandler(importService Importer, uploadDir string, maxUploadBytes int64) *ImportHandler {
	return &ImportHandler{
		importService:  importService,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *ImportHandler) ImportFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	file, err := c.FormFile(importFileField)
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "No file uploaded.")
		return
	}
	if !parser.SupportedExtension(file.Filename) {
		responses.Fail(c, http.StatusBadRequest, nil, "Invalid file type. Only .xlsx, .xls and .csv files are allowed.")
		return
	}
	if file.Size > h.maxUploadBytes {
		responses.Fail(c, http.StatusBadRequest, nil, fmt.Sprintf("File exceeds the %d MB upload limit.", h.maxUploadBytes/(1024*1024)))
		return
	}

	tmp, err := os.CreateTemp(h.uploadDir, "import-*"+filepath.Ext(file.Filename))
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, nil, "Could not store the uploaded file.")
		logger.Log.WithError(err).Error("failed to create upload file")
		return
	}
	path := tmp.Name()
	tmp.Close()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Log.WithError(err).WithField("path", path).Warn("failed to remove upload")
		}
	}()

	if err := c.SaveUploadedFile(file, path); err != nil {
		responses.Fail(c, http.StatusInternalServerError, nil, "Could not store the uploaded file.")
		logger.Log.WithError(err).Error("failed to save upload")
		return
	}

	result, err := h.importService.Import(c.Request.Context(), services.ImportRequest{
		UserID:       userID,
		TopicID:      topicID,
		FilePath:     path,
		OriginalName: file.Filename,
		IP:           c.ClientIP(),
	})
	if err != nil {
		responses.FromError(c, err)
		return
	}

	if result.Rejected() {
		responses.JSON(c, http.StatusBadRequest, "error", result, result.Message, nil)
		return
	}
	responses.Success(c, http.StatusOK, result, result.Message)
}
