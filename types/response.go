package types

type DataResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type SubmitDocumentResponse struct {
	TaskID string `json:"task_id"`
}

type TaskStatusResponse struct {
	TaskID         string     `json:"task_id"`
	Status         TaskStatus `json:"status"`
	TotalPages     int        `json:"total_pages,omitempty"`
	ProcessedPages int        `json:"processed_pages,omitempty"`
	Error          string     `json:"error,omitempty"`
}

type SearchMatchResponse struct {
	Text     string            `json:"text"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type SearchResponse struct {
	Matches []SearchMatchResponse `json:"matches"`
}

type CollectionInfoResponse struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Records   int    `json:"records"`
	Backend   string `json:"backend"`
}
