package queries

import "rndindex/domain/graph"

// IndexStatusQuery asks for the published generation and the last rebuild run
type IndexStatusQuery struct{}

// Validate validates the IndexStatusQuery
func (q IndexStatusQuery) Validate() error {
	return nil
}

// GenerationInfo summarises a published generation
type GenerationInfo struct {
	ID        int64       `json:"id"`
	RunID     string      `json:"runId"`
	BuiltAt   string      `json:"builtAt"`
	Watermark int64       `json:"watermark"`
	Checksum  string      `json:"checksum"`
	Stats     graph.Stats `json:"stats"`
}

// RunInfo describes the most recent rebuild run
type RunInfo struct {
	RunID        string `json:"runId,omitempty"`
	Trigger      string `json:"trigger,omitempty"`
	State        string `json:"state"`
	StartedAt    string `json:"startedAt,omitempty"`
	FinishedAt   string `json:"finishedAt,omitempty"`
	GenerationID int64  `json:"generationId,omitempty"`
	Error        string `json:"error,omitempty"`
}

// IndexStatusResult is the state of the reference index
type IndexStatusResult struct {
	Generation *GenerationInfo `json:"generation,omitempty"`
	LastRun    RunInfo         `json:"lastRun"`
	Stale      bool            `json:"stale"`
}
