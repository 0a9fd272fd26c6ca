package domain

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ExtractionJob tracks an uploaded document queued for asynchronous extraction.
type ExtractionJob struct {
	ID          string            `json:"id"`
	Filename    string            `json:"filename"`
	Operation   Operation         `json:"operation"`
	StoragePath string            `json:"storage_path"`
	Status      JobStatus         `json:"status"`
	Error       string            `json:"error,omitempty"`
	Result      *ExtractionResult `json:"result,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
