package service

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/medflow/medinsight/internal/scan/domain"
	"github.com/medflow/medinsight/pkg/logger"
)

// JobStore keeps scan jobs in memory. Finished jobs are dropped once they are
// older than the TTL, together with their report PDF.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	ttl  time.Duration
	now  func() time.Time
	log  *logger.Logger

	stop chan struct{}
	once sync.Once
}

// NewJobStore creates a store and starts its cleanup loop
func NewJobStore(ttl time.Duration, log *logger.Logger) *JobStore {
	s := newJobStore(ttl, time.Now, log)
	go s.cleanupLoop()
	return s
}

func newJobStore(ttl time.Duration, now func() time.Time, log *logger.Logger) *JobStore {
	return &JobStore{
		jobs: make(map[string]*domain.Job),
		ttl:  ttl,
		now:  now,
		log:  log.WithComponent("scan-jobs"),
		stop: make(chan struct{}),
	}
}

// Create stores a new pending job
func (s *JobStore) Create(id, patientID, requestedBy string) *domain.Job {
	now := s.now().UTC()
	job := &domain.Job{
		ID:          id,
		PatientID:   patientID,
		RequestedBy: requestedBy,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	cp := *job
	return &cp
}

// Get returns a copy of the job, or nil when it is unknown or expired
func (s *JobStore) Get(id string) *domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

// Update applies fn to the stored job and stamps UpdatedAt
func (s *JobStore) Update(id string, fn func(*domain.Job)) *domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	fn(job)
	job.UpdatedAt = s.now().UTC()
	cp := *job
	return &cp
}

// Close stops the cleanup loop
func (s *JobStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *JobStore) cleanupLoop() {
	interval := s.ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

// cleanup drops finished jobs last updated before the TTL cutoff and deletes
// the report files they own
func (s *JobStore) cleanup() int {
	s.mu.Lock()
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	var reports []string
	for id, job := range s.jobs {
		if job.Done() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
			if job.ReportPath != "" {
				reports = append(reports, job.ReportPath)
			}
		}
	}
	s.mu.Unlock()

	for _, path := range reports {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", path).Msg("failed to remove expired scan report")
		}
	}
	if removed > 0 {
		s.log.Debug().Int("jobs", removed).Int("reports", len(reports)).Msg("expired scan jobs removed")
	}
	return removed
}
