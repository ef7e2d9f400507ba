package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/phamduchanh/docvec-be/database"
	"github.com/phamduchanh/docvec-be/types"
)

// CollectionHandler manages vector collections: create, inspect, delete,
// backup and restore.
type CollectionHandler struct {
	vectorDB database.VectorDatabase
}

func NewCollectionHandler(vectorDB database.VectorDatabase) *CollectionHandler {
	return &CollectionHandler{vectorDB: vectorDB}
}

func (h *CollectionHandler) CreateCollectionHandler(c *gin.Context) {
	var req types.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}
	if req.Name == "" || req.Dimension <= 0 {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Name and a positive dimension are required",
		})
		return
	}

	if err := h.vectorDB.CreateCollection(c.Request.Context(), req.Name, req.Dimension); err != nil {
		writeCollectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status:  true,
		Message: "Collection ready",
	})
}

func (h *CollectionHandler) GetCollectionInfoHandler(c *gin.Context) {
	info, err := h.vectorDB.Info(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeCollectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data: types.CollectionInfoResponse{
			Name:      info.Name,
			Dimension: info.Dimension,
			Records:   info.Records,
			Backend:   h.vectorDB.Backend(),
		},
	})
}

func (h *CollectionHandler) DeleteCollectionHandler(c *gin.Context) {
	if err := h.vectorDB.DeleteCollection(c.Request.Context(), c.Param("name")); err != nil {
		writeCollectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status:  true,
		Message: "Collection deleted",
	})
}

// BackupCollectionHandler streams the full snapshot as the response body;
// the same JSON document restores on any backend.
func (h *CollectionHandler) BackupCollectionHandler(c *gin.Context) {
	snapshot, err := h.vectorDB.Backup(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeCollectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *CollectionHandler) RestoreCollectionHandler(c *gin.Context) {
	var snapshot database.CollectionSnapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid snapshot body",
		})
		return
	}
	if snapshot.Name == "" || snapshot.Dimension <= 0 {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Snapshot must carry a name and a positive dimension",
		})
		return
	}

	if err := h.vectorDB.Restore(c.Request.Context(), &snapshot); err != nil {
		writeCollectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status:  true,
		Message: "Collection restored",
	})
}

func writeCollectionError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, types.ErrDimensionMismatch), errors.Is(err, types.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, types.DataResponse{
		Status:  false,
		Message: err.Error(),
	})
}
