package domain

import (
	"encoding/json"
	"time"
)

// Query is the retrieval question used to pick the context for a scan
const Query = "Summarize the entire patient history and health reports."

// Status represents the processing state of a scan job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Request starts a smart scan for one patient. PatientData must be a JSON object.
type Request struct {
	PatientID    string          `json:"patient_id" validate:"required,max=128"`
	PatientData  json.RawMessage `json:"patient_data" validate:"required"`
	DocumentURLs []string        `json:"document_urls" validate:"max=20,dive,http_url"`
	Title        string          `json:"title" validate:"max=200"`
	RequestedBy  string          `json:"-"`
}

// Chunk is one embedded piece of patient text in the vector store
type Chunk struct {
	SessionID string    `db:"session_id"`
	Position  int       `db:"position"`
	Content   string    `db:"content"`
	Embedding []float32 `db:"-"`
}

// ScoredChunk is a search hit with its cosine similarity to the query
type ScoredChunk struct {
	Chunk
	Score float64
}

// Result is the outcome of a completed pipeline run
type Result struct {
	SessionID  string
	ReportPath string
	Chunks     int
	Retrieved  int
}

// Job tracks an asynchronous scan
type Job struct {
	ID          string     `json:"id"`
	PatientID   string     `json:"patient_id"`
	RequestedBy string     `json:"requested_by,omitempty"`
	Status      Status     `json:"status"`
	Chunks      int        `json:"chunks,omitempty"`
	ReportPath  string     `json:"-"`
	HasReport   bool       `json:"has_report"`
	ErrorCode   string     `json:"error_code,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Done reports whether the job reached a terminal state
func (j *Job) Done() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
