package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/medflow/medinsight/internal/scan/domain"
	"github.com/medflow/medinsight/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStore(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newJobStore(time.Hour, func() time.Time { return now }, logger.Nop())

	job := s.Create("j-1", "p-1", "doctor-1")
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, now, job.CreatedAt)

	job.Status = domain.StatusFailed
	assert.Equal(t, domain.StatusPending, s.Get("j-1").Status, "returned jobs are copies")

	now = now.Add(time.Minute)
	updated := s.Update("j-1", func(j *domain.Job) { j.Status = domain.StatusProcessing })
	require.NotNil(t, updated)
	assert.Equal(t, domain.StatusProcessing, updated.Status)
	assert.Equal(t, now, updated.UpdatedAt)

	assert.Nil(t, s.Get("missing"))
	assert.Nil(t, s.Update("missing", func(*domain.Job) {}))
}

func TestJobStore_Cleanup(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newJobStore(time.Hour, func() time.Time { return now }, logger.Nop())

	s.Create("done", "p", "")
	s.Update("done", func(j *domain.Job) { j.Status = domain.StatusCompleted })
	s.Create("running", "p", "")
	s.Update("running", func(j *domain.Job) { j.Status = domain.StatusProcessing })

	now = now.Add(30 * time.Minute)
	assert.Equal(t, 0, s.cleanup())

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, s.cleanup())
	assert.Nil(t, s.Get("done"))
	assert.NotNil(t, s.Get("running"), "unfinished jobs are never expired")
}

func TestJobStore_CleanupRemovesReports(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newJobStore(time.Hour, func() time.Time { return now }, logger.Nop())

	expired := filepath.Join(dir, "smart_scan_old.pdf")
	fresh := filepath.Join(dir, "smart_scan_new.pdf")
	require.NoError(t, os.WriteFile(expired, []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("%PDF-1.4"), 0o644))

	s.Create("old", "p", "")
	s.Update("old", func(j *domain.Job) {
		j.Status = domain.StatusCompleted
		j.ReportPath = expired
	})
	s.Create("gone", "p", "")
	s.Update("gone", func(j *domain.Job) {
		j.Status = domain.StatusCompleted
		j.ReportPath = filepath.Join(dir, "already_deleted.pdf")
	})

	now = now.Add(90 * time.Minute)
	s.Create("new", "p", "")
	s.Update("new", func(j *domain.Job) {
		j.Status = domain.StatusCompleted
		j.ReportPath = fresh
	})

	assert.Equal(t, 2, s.cleanup())
	assert.NoFileExists(t, expired)
	assert.FileExists(t, fresh)
	assert.NotNil(t, s.Get("new"))
}

func TestJobStore_Close(t *testing.T) {
	s := NewJobStore(time.Hour, logger.Nop())
	s.Close()
	s.Close()
}
