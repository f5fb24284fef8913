package indexer

// WebSocket event types for search operations.
const (
	EventSearchStarted   = "search:started"
	EventSearchCompleted = "search:completed"
)

// SearchStartedPayload is sent when a search begins.
type SearchStartedPayload struct {
	SearchID string `json:"searchId"`
	Query    string `json:"query"`
}

// SearchCompletedPayload is sent when a search finishes.
type SearchCompletedPayload struct {
	SearchID     string `json:"searchId"`
	Query        string `json:"query"`
	TotalResults int    `json:"totalResults"`
	Responses    int    `json:"responses"`
	Error        string `json:"error,omitempty"`
	ElapsedMs    int64  `json:"elapsedMs"`
}
