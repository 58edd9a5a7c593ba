package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventScanRequested = "scan.requested"
	EventScanCompleted = "scan.completed"
	EventScanFailed    = "scan.failed"
)

// Exchange and queue names
const (
	ExchangeScanEvents = "scan.events"
	QueueScanRequests  = "insight-service.scan-requests"
)

// Event is the envelope shared by every message on the bus
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// ScanRequestedEvent asks the insight service to run a smart scan.
// PatientData must be a JSON object.
type ScanRequestedEvent struct {
	PatientID    string          `json:"patient_id"`
	RequestedBy  string          `json:"requested_by"`
	PatientData  json.RawMessage `json:"patient_data"`
	DocumentURLs []string        `json:"document_urls,omitempty"`
	Title        string          `json:"title,omitempty"`
}

// ScanCompletedEvent is published when a scan produced its PDF report
type ScanCompletedEvent struct {
	ScanID      string    `json:"scan_id"`
	PatientID   string    `json:"patient_id"`
	ReportPath  string    `json:"report_path"`
	Chunks      int       `json:"chunks"`
	CompletedAt time.Time `json:"completed_at"`
}

// ScanFailedEvent is published when a scan could not complete
type ScanFailedEvent struct {
	ScanID    string    `json:"scan_id"`
	PatientID string    `json:"patient_id"`
	Code      string    `json:"code"`
	Error     string    `json:"error"`
	FailedAt  time.Time `json:"failed_at"`
}
