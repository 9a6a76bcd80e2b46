package models

// DocumentSourceUnknown labels documents stored without a source.
const DocumentSourceUnknown = "unknown"

// Document is a free-text record in the RAG store. Upserts are last write wins per ID.
type Document struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// RetrievalChunk is a ranked document returned for a single request.
type RetrievalChunk struct {
	ID     string  `json:"id,omitempty"`
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}
