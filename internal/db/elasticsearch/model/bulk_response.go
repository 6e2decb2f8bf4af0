package model

type BulkResponse struct {
	Errors bool       `json:"errors"`
	Items  []BulkItem `json:"items"`
}

type BulkItem struct {
	Index BulkItemResult `json:"index"`
}

type BulkItemResult struct {
	ID     string         `json:"_id"`
	Index  string         `json:"_index"`
	Status int            `json:"status"`
	Error  *BulkItemError `json:"error,omitempty"`
}

type BulkItemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// FirstFailure returns the first rejected document of the request, if any.
func (br BulkResponse) FirstFailure() *Failure {
	if !br.Errors {
		return nil
	}
	for _, item := range br.Items {
		if item.Index.Error != nil {
			return &Failure{
				ID:     item.Index.ID,
				Index:  item.Index.Index,
				Reason: item.Index.Error.Reason,
				Type:   item.Index.Error.Type,
				Status: item.Index.Status,
			}
		}
	}
	return nil
}

type Failure struct {
	ID     string `json:"id"`     // Document ID
	Index  string `json:"index"`  // Index name
	Reason string `json:"reason"` // Failure reason
	Type   string `json:"type"`   // Type of error (e.g., version_conflict_engine_exception)
	Status int    `json:"status"` // HTTP status code
}
