package oracle

import "context"

// Request carries everything the oracle needs to review one diagram.
// It is derived entirely from the local pipeline, so two calls for the
// same diagram send the same request.
type Request struct {
	FileName    string         `json:"file_name"`
	Tier        string         `json:"tier"`
	Description string         `json:"description"`
	Services    map[string]int `json:"services"`
	Patterns    []string       `json:"patterns"`
}

// Oracle defines the standard interface for any AI analysis backend.
// Implementations return the raw model text; parsing and outcome
// classification happen in Invoke.
// TODO: surface token usage so cost can be tracked per analysis.
type Oracle interface {
	Analyze(ctx context.Context, req Request) (string, error)
}
