package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cacao-collective/bookkeeper/internal/jobs"
)

// Store keeps job state in memory. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.PostEventJob
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.PostEventJob)}
}

// SaveJob saves or updates a job. Jobs are stored by value so callers cannot
// mutate stored state through their own pointer.
func (s *Store) SaveJob(ctx context.Context, job *jobs.PostEventJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.PostEventJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	jobCopy := *job
	return &jobCopy, nil
}

func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.PostEventJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.PostEventJob
	for _, job := range s.jobs {
		if filter.RowIndex != 0 && job.RowIndex != filter.RowIndex {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

var _ jobs.JobStore = (*Store)(nil)
