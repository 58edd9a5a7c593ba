package domain

import (
	"time"

	"github.com/medflow/medinsight/internal/document"
)

// PreviewLength is how many characters of extracted PDF text are echoed back
const PreviewLength = 1000

// Request is one uploaded report to analyze
type Request struct {
	Kind     document.Kind
	Filename string
	Data     []byte
}

// Result is the outcome of an analysis. Fallback is set when the model could
// not be reached and Analysis holds the canned fallback text instead.
type Result struct {
	ID         string        `json:"id"`
	Kind       document.Kind `json:"kind"`
	MIME       string        `json:"mime"`
	Filename   string        `json:"filename,omitempty"`
	Analysis   string        `json:"analysis"`
	Fallback   bool          `json:"fallback"`
	Attempts   int           `json:"attempts"`
	Preview    string        `json:"preview,omitempty"`
	WordCount  int           `json:"word_count,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	DurationMs int64         `json:"duration_ms"`
}
