package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ravi-parthasarathy/openagi/pkg/workflow"
)

type RunStatus string

const (
	RunRunning    RunStatus = "running"
	RunSucceeded  RunStatus = "succeeded"
	RunFailed     RunStatus = "failed"
	RunSuperseded RunStatus = "superseded"
)

type RunRecord struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	Model      string     `json:"model,omitempty"`
	Output     string     `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	Code       string     `json:"code,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// RunStore keeps the most recent runs. Older records are evicted once the
// capacity is reached.
type RunStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, RunRecord]
	now   func() time.Time
}

func NewRunStore(size int) (*RunStore, error) {
	cache, err := lru.New[string, RunRecord](size)
	if err != nil {
		return nil, fmt.Errorf("run store: %w", err)
	}
	return &RunStore{cache: cache, now: time.Now}, nil
}

// Start records a new running run and returns it.
func (s *RunStore) Start() RunRecord {
	rec := RunRecord{
		ID:        uuid.NewString(),
		Status:    RunRunning,
		StartedAt: s.now().UTC(),
	}
	s.mu.Lock()
	s.cache.Add(rec.ID, rec)
	s.mu.Unlock()
	return rec
}

// Finish completes the record for id from the run outcome. A record already
// evicted is recreated so the caller always gets the final state back.
func (s *RunStore) Finish(id string, res workflow.RunResult, runErr error) RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.cache.Get(id)
	if !ok {
		rec = RunRecord{ID: id}
	}
	finished := s.now().UTC()
	rec.FinishedAt = &finished

	switch {
	case runErr == nil:
		rec.Status = RunSucceeded
		rec.Model = res.Model
		rec.Output = res.Output
	case workflow.IsSuperseded(runErr):
		rec.Status = RunSuperseded
		rec.Error = workflow.UserMessage(runErr)
		rec.Code = workflow.ErrorCode(runErr)
	default:
		rec.Status = RunFailed
		rec.Error = workflow.UserMessage(runErr)
		rec.Code = workflow.ErrorCode(runErr)
	}
	s.cache.Add(id, rec)
	return rec
}

func (s *RunStore) Get(id string) (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(id)
}

func (s *RunStore) Len() int {
	return s.cache.Len()
}
