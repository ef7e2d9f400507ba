package types

type SubmitDocumentRequest struct {
	Collection string   `json:"collection"`
	Title      string   `json:"title,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

type SearchRequest struct {
	Collection string `json:"collection"`
	Query      string `json:"query"`
	TopK       int    `json:"top_k,omitempty"`
}

type CreateCollectionRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

type BackupCollectionRequest struct {
	OutputName string `json:"output_name,omitempty"`
}
