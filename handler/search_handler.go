package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/phamduchanh/docvec-be/database"
	services "github.com/phamduchanh/docvec-be/service"
	"github.com/phamduchanh/docvec-be/types"
)

// SearchHandler answers semantic queries against a collection. The query is
// embedded with the provider whose dimension matches the collection, so
// results stay comparable with the stored vectors.
type SearchHandler struct {
	vectorDB database.VectorDatabase
	embed    *services.EmbeddingService
}

func NewSearchHandler(vectorDB database.VectorDatabase, embed *services.EmbeddingService) *SearchHandler {
	return &SearchHandler{
		vectorDB: vectorDB,
		embed:    embed,
	}
}

func (h *SearchHandler) SearchHandler(c *gin.Context) {
	var req types.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}
	if req.Collection == "" || req.Query == "" {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Collection and query are required",
		})
		return
	}

	info, err := h.vectorDB.Info(c.Request.Context(), req.Collection)
	if err != nil {
		writeSearchError(c, err)
		return
	}

	vector, _, err := h.embed.EmbedForDimension(c.Request.Context(), req.Query, info.Dimension)
	if err != nil {
		writeSearchError(c, err)
		return
	}

	matches, err := h.vectorDB.Search(c.Request.Context(), req.Collection, vector, req.TopK)
	if err != nil {
		writeSearchError(c, err)
		return
	}

	resp := types.SearchResponse{Matches: make([]types.SearchMatchResponse, 0, len(matches))}
	for _, match := range matches {
		resp.Matches = append(resp.Matches, types.SearchMatchResponse{
			Text:     match.Record.Text,
			Score:    match.Score,
			Metadata: match.Record.Metadata,
		})
	}

	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   resp,
	})
}

func writeSearchError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrDimensionMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, types.DataResponse{
		Status:  false,
		Message: err.Error(),
	})
}
