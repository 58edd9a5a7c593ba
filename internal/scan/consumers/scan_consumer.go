package consumers

import (
	"context"
	"time"

	"github.com/medflow/medinsight/internal/scan/domain"
	"github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/logger"
	"github.com/medflow/medinsight/pkg/messaging"
)

// Starter starts a smart scan job
type Starter interface {
	Start(ctx context.Context, req *domain.Request) (*domain.Job, error)
}

// Publisher announces rejected requests
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// ScanRequestHandler turns scan.requested events into scan jobs (testable without RabbitMQ)
type ScanRequestHandler struct {
	scans     Starter
	publisher Publisher
	logger    *logger.Logger
}

// NewScanRequestHandler creates a handler. publisher may be nil.
func NewScanRequestHandler(scans Starter, publisher Publisher, log *logger.Logger) *ScanRequestHandler {
	return &ScanRequestHandler{
		scans:     scans,
		publisher: publisher,
		logger:    log,
	}
}

// HandleScanRequested starts a scan for the event. Requests that can never
// succeed are answered with scan.failed and acknowledged; other errors are
// returned so the delivery is retried.
func (h *ScanRequestHandler) HandleScanRequested(ctx context.Context, event *messaging.Event) error {
	var data messaging.ScanRequestedEvent
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to unmarshal ScanRequestedEvent")
		h.reject(ctx, data.PatientID, errors.BadRequest("malformed scan.requested payload"))
		return nil
	}

	if event.CorrelationID != "" {
		ctx = messaging.WithCorrelationID(ctx, event.CorrelationID)
	}

	job, err := h.scans.Start(ctx, &domain.Request{
		PatientID:    data.PatientID,
		PatientData:  data.PatientData,
		DocumentURLs: data.DocumentURLs,
		Title:        data.Title,
		RequestedBy:  data.RequestedBy,
	})
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) && appErr.StatusCode < 500 {
			h.logger.Warn().
				Err(err).
				Str("event_id", event.ID).
				Str("patient_id", data.PatientID).
				Msg("rejected scan request")
			h.reject(ctx, data.PatientID, appErr)
			return nil
		}
		return err
	}

	h.logger.Info().
		Str("event_id", event.ID).
		Str("scan_id", job.ID).
		Str("patient_id", data.PatientID).
		Msg("scan started from event")
	return nil
}

func (h *ScanRequestHandler) reject(ctx context.Context, patientID string, appErr *errors.AppError) {
	if h.publisher == nil {
		return
	}
	err := h.publisher.Publish(ctx, messaging.EventScanFailed, messaging.ScanFailedEvent{
		PatientID: patientID,
		Code:      appErr.Code,
		Error:     appErr.Error(),
		FailedAt:  time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to publish scan rejection")
	}
}

// ScanRequestConsumer consumes scan requests from the scan.events exchange
type ScanRequestConsumer struct {
	consumer *messaging.Consumer
	handler  *ScanRequestHandler
	logger   *logger.Logger
}

// NewScanRequestConsumer declares the request queue and binds it to scan.requested
func NewScanRequestConsumer(rmq *messaging.RabbitMQ, scans Starter, publisher Publisher, log *logger.Logger) (*ScanRequestConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, messaging.QueueScanRequests, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeScanEvents, messaging.EventScanRequested); err != nil {
		return nil, err
	}

	handler := NewScanRequestHandler(scans, publisher, log)
	consumer.RegisterHandler(messaging.EventScanRequested, handler.HandleScanRequested)

	return &ScanRequestConsumer{
		consumer: consumer,
		handler:  handler,
		logger:   log,
	}, nil
}

// Start starts consuming messages
func (c *ScanRequestConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}
