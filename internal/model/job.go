package model

import "time"

// JobStatus is the OCR job lifecycle state.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition can occur.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one scan attempt for a contact's business card. A job moves
// pending → processing → {completed|failed} exactly once and never returns
// to an earlier state.
type Job struct {
	ID           string     `json:"id"`
	ContactID    string     `json:"contact_id"`
	Status       JobStatus  `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// JobStats summarizes jobs by status plus the mean wall-clock duration of
// completed jobs.
type JobStats struct {
	Total             int               `json:"total"`
	ByStatus          map[JobStatus]int `json:"by_status"`
	AvgProcessingSecs float64           `json:"avg_processing_secs"`
}

// BatchResult reports the outcome of draining the pending backlog.
type BatchResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}
