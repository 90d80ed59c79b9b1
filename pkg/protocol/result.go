package protocol

// ResultMetadata describes how an execution went.
type ResultMetadata struct {
	DurationMs  int64          `json:"duration_ms"`
	Connector   string         `json:"connector"`
	Diagnostics map[string]any `json:"diagnostics,omitempty"`
}

// ExecutionResult is the normalized outcome of running an action.
type ExecutionResult struct {
	IsExecutionSuccess bool           `json:"is_execution_success"`
	StatusCode         int            `json:"status_code,omitempty"`
	Body               any            `json:"body"`
	Headers            map[string]any `json:"headers,omitempty"`
	Metadata           ResultMetadata `json:"metadata"`
}
