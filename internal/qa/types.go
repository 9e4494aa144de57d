package qa

// Answer is the response to one question.
type Answer struct {
	Answer             string         `json:"answer"`
	RetrievedDocuments []DocumentInfo `json:"retrieved_documents"`
}

// DocumentInfo cites one chunk that contributed to an answer. Snippet is the
// chunk's original text, not the extracted part.
type DocumentInfo struct {
	Page    string `json:"page"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Health is the readiness signal exposed to the service layer.
type Health struct {
	Ready   bool `json:"ready"`
	Entries int  `json:"entries"`
}
