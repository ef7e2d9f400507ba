package handler

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	services "github.com/phamduchanh/docvec-be/service"
	"github.com/phamduchanh/docvec-be/types"
	"github.com/phamduchanh/docvec-be/utils"
)

const maxUploadSize = 100 << 20

// IngestHandler accepts document uploads and queues them for processing.
type IngestHandler struct {
	taskService *services.TaskService
	uploadDir   string
}

func NewIngestHandler(taskService *services.TaskService, uploadDir string) *IngestHandler {
	return &IngestHandler{
		taskService: taskService,
		uploadDir:   uploadDir,
	}
}

// SubmitDocumentHandler takes a multipart upload with a "file" part and an
// optional "metadata" part holding a SubmitDocumentRequest. It responds
// immediately with the task ID.
func (h *IngestHandler) SubmitDocumentHandler(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid file",
		})
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "File too large",
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".pdf" && ext != ".ppt" && ext != ".pptx" {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Unsupported file type, expected .pdf, .ppt or .pptx",
		})
		return
	}

	var req types.SubmitDocumentRequest
	if metadata := c.Request.FormValue("metadata"); metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &req); err != nil {
			c.JSON(http.StatusBadRequest, types.DataResponse{
				Status:  false,
				Message: "Invalid metadata",
			})
			return
		}
	}
	if req.Collection == "" {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Collection is required",
		})
		return
	}
	if req.Title == "" {
		req.Title = utils.GetFileNameWithoutExt(header.Filename)
	}

	savedPath, err := utils.SaveUploadWithTimestamp(file, header.Filename, h.uploadDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}

	taskID, err := h.taskService.Submit(savedPath, types.ProcessOptions{
		Collection: req.Collection,
		Title:      req.Title,
		Tags:       req.Tags,
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, types.DataResponse{
		Status:  true,
		Message: "Document queued",
		Data:    types.SubmitDocumentResponse{TaskID: taskID},
	})
}
