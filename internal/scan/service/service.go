package service

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/medinsight/internal/scan/domain"
	"github.com/medflow/medinsight/internal/scan/ingest"
	"github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/httputil"
	"github.com/medflow/medinsight/pkg/logger"
	"github.com/medflow/medinsight/pkg/messaging"
)

// Runner executes a scan synchronously
type Runner interface {
	RunSession(ctx context.Context, sessionID string, req *domain.Request) (*domain.Result, error)
}

// Publisher announces scan outcomes
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Service runs smart scans as background jobs
type Service struct {
	runner    Runner
	jobs      *JobStore
	publisher Publisher
	log       *logger.Logger
	wg        sync.WaitGroup
}

// NewService creates a scan service. publisher may be nil when no broker is configured.
func NewService(runner Runner, jobs *JobStore, publisher Publisher, log *logger.Logger) *Service {
	return &Service{
		runner:    runner,
		jobs:      jobs,
		publisher: publisher,
		log:       log.WithComponent("scan-service"),
	}
}

// Start validates req, records a pending job and processes it in the
// background. The returned job can be polled with Get.
func (s *Service) Start(ctx context.Context, req *domain.Request) (*domain.Job, error) {
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}
	if _, err := ingest.PatientEntries(req.PatientData); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	job := s.jobs.Create(id, req.PatientID, req.RequestedBy)

	s.log.Info().
		Str("scan_id", id).
		Str("patient_id", req.PatientID).
		Int("documents", len(req.DocumentURLs)).
		Msg("smart scan accepted")

	// Request cancellation must not abort the scan; values such as the correlation id are kept
	bgCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.process(bgCtx, id, req)
	}()

	return job, nil
}

// Get returns a job by id
func (s *Service) Get(id string) (*domain.Job, error) {
	job := s.jobs.Get(id)
	if job == nil {
		return nil, errors.NotFound("scan")
	}
	return job, nil
}

// ReportPath returns the PDF path of a completed scan
func (s *Service) ReportPath(id string) (string, error) {
	job, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if job.Status != domain.StatusCompleted {
		return "", errors.New("SCAN_NOT_READY", "scan has not completed", 409).
			WithDetails(map[string]string{"status": string(job.Status)})
	}
	if _, err := os.Stat(job.ReportPath); err != nil {
		return "", errors.NotFound("report")
	}
	return job.ReportPath, nil
}

// Wait blocks until all background scans have finished or ctx ends
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) process(ctx context.Context, id string, req *domain.Request) {
	log := s.log.WithScanID(id)
	s.jobs.Update(id, func(j *domain.Job) { j.Status = domain.StatusProcessing })

	result, err := s.runner.RunSession(ctx, id, req)
	if err != nil {
		code := "INTERNAL_ERROR"
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			code = appErr.Code
		}

		failedAt := time.Now().UTC()
		s.jobs.Update(id, func(j *domain.Job) {
			j.Status = domain.StatusFailed
			j.ErrorCode = code
			j.Error = err.Error()
			j.CompletedAt = &failedAt
		})
		log.Error().Err(err).Str("code", code).Msg("smart scan failed")

		s.publish(ctx, messaging.EventScanFailed, messaging.ScanFailedEvent{
			ScanID:    id,
			PatientID: req.PatientID,
			Code:      code,
			Error:     err.Error(),
			FailedAt:  failedAt,
		})
		return
	}

	completedAt := time.Now().UTC()
	s.jobs.Update(id, func(j *domain.Job) {
		j.Status = domain.StatusCompleted
		j.Chunks = result.Chunks
		j.ReportPath = result.ReportPath
		j.HasReport = true
		j.CompletedAt = &completedAt
	})

	s.publish(ctx, messaging.EventScanCompleted, messaging.ScanCompletedEvent{
		ScanID:      id,
		PatientID:   req.PatientID,
		ReportPath:  result.ReportPath,
		Chunks:      result.Chunks,
		CompletedAt: completedAt,
	})
}

func (s *Service) publish(ctx context.Context, eventType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, data); err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("failed to publish scan event")
	}
}
