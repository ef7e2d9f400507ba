package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamduchanh/docvec-be/database"
	services "github.com/phamduchanh/docvec-be/service"
	"github.com/phamduchanh/docvec-be/types"
)

func newSearchRouter(t *testing.T) (*gin.Engine, database.VectorDatabase) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := database.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	embed := services.NewEmbeddingService(nil, time.Second)

	router := gin.New()
	h := NewSearchHandler(store, embed)
	router.POST("/api/v1/search", h.SearchHandler)
	return router, store
}

func seedCollection(t *testing.T, store database.VectorDatabase, texts ...string) {
	t.Helper()
	embedder := services.NewCharFreqEmbedder()
	records := make([]database.EmbeddingRecord, 0, len(texts))
	for _, text := range texts {
		vector, err := embedder.Embed(context.Background(), text)
		require.NoError(t, err)
		records = append(records, database.EmbeddingRecord{
			Text:     text,
			Vector:   vector,
			Provider: "charfreq",
		})
	}
	require.NoError(t, store.Insert(context.Background(), "docs", records))
}

func postSearch(t *testing.T, router *gin.Engine, body types.SearchRequest) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSearchHandlerReturnsRankedMatches(t *testing.T) {
	router, store := newSearchRouter(t)
	seedCollection(t, store, "alpha beta gamma", "zzz 999")

	w := postSearch(t, router, types.SearchRequest{
		Collection: "docs",
		Query:      "alpha beta gamma",
		TopK:       2,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Status bool                 `json:"status"`
		Data   types.SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Status)
	require.Len(t, resp.Data.Matches, 2)
	assert.Equal(t, "alpha beta gamma", resp.Data.Matches[0].Text)
	assert.InDelta(t, 1.0, float64(resp.Data.Matches[0].Score), 1e-6)
}

func TestSearchHandlerUnknownCollection(t *testing.T) {
	router, _ := newSearchRouter(t)

	w := postSearch(t, router, types.SearchRequest{Collection: "missing", Query: "q"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchHandlerValidation(t *testing.T) {
	router, _ := newSearchRouter(t)

	w := postSearch(t, router, types.SearchRequest{Collection: "", Query: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
