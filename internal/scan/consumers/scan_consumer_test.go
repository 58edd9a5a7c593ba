package consumers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/medflow/medinsight/internal/scan/domain"
	"github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/logger"
	"github.com/medflow/medinsight/pkg/messaging"
	"github.com/medflow/medinsight/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStarter struct {
	req           *domain.Request
	correlationID string
	err           error
}

func (f *fakeStarter) Start(ctx context.Context, req *domain.Request) (*domain.Job, error) {
	f.req = req
	f.correlationID = messaging.CorrelationID(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Job{ID: "scan-1", PatientID: req.PatientID, Status: domain.StatusPending}, nil
}

func scanRequested(t *testing.T, data interface{}) *messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(messaging.EventScanRequested, "ehr-service", "corr-1", data)
	require.NoError(t, err)
	return event
}

func TestHandleScanRequested_StartsScan(t *testing.T) {
	starter := &fakeStarter{}
	pub := testutil.NewMockPublisher()
	h := NewScanRequestHandler(starter, pub, logger.Nop())

	event := scanRequested(t, messaging.ScanRequestedEvent{
		PatientID:    "p-1",
		RequestedBy:  "doctor-1",
		PatientData:  json.RawMessage(`{"name":"Jane Doe"}`),
		DocumentURLs: []string{"https://files.example/labs.pdf"},
		Title:        "Quarterly review",
	})

	require.NoError(t, h.HandleScanRequested(context.Background(), event))
	require.NotNil(t, starter.req)
	assert.Equal(t, "p-1", starter.req.PatientID)
	assert.Equal(t, "doctor-1", starter.req.RequestedBy)
	assert.JSONEq(t, `{"name":"Jane Doe"}`, string(starter.req.PatientData))
	assert.Equal(t, []string{"https://files.example/labs.pdf"}, starter.req.DocumentURLs)
	assert.Equal(t, "Quarterly review", starter.req.Title)
	assert.Equal(t, "corr-1", starter.correlationID)
	assert.Empty(t, pub.Events())
}

func TestHandleScanRequested_RejectsInvalidRequest(t *testing.T) {
	starter := &fakeStarter{err: errors.Validation(map[string]string{"PatientID": "this field is required"})}
	pub := testutil.NewMockPublisher()
	h := NewScanRequestHandler(starter, pub, logger.Nop())

	err := h.HandleScanRequested(context.Background(), scanRequested(t, messaging.ScanRequestedEvent{}))
	require.NoError(t, err, "invalid requests are acknowledged, not redelivered")

	ev, ok := pub.Find(messaging.EventScanFailed)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", ev.Payload.(messaging.ScanFailedEvent).Code)
}

func TestHandleScanRequested_MalformedPayload(t *testing.T) {
	pub := testutil.NewMockPublisher()
	h := NewScanRequestHandler(&fakeStarter{}, pub, logger.Nop())

	event := &messaging.Event{ID: "e-1", Type: messaging.EventScanRequested, Data: json.RawMessage(`"not an object"`)}
	require.NoError(t, h.HandleScanRequested(context.Background(), event))

	ev, ok := pub.Find(messaging.EventScanFailed)
	require.True(t, ok)
	assert.Equal(t, "BAD_REQUEST", ev.Payload.(messaging.ScanFailedEvent).Code)
}

func TestHandleScanRequested_InternalErrorIsRetried(t *testing.T) {
	h := NewScanRequestHandler(&fakeStarter{err: assert.AnError}, nil, logger.Nop())

	err := h.HandleScanRequested(context.Background(), scanRequested(t, messaging.ScanRequestedEvent{PatientID: "p"}))
	assert.ErrorIs(t, err, assert.AnError)
}
