package statusstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"server/internal/domain"
)

// ErrNoJob is returned by Claim when the queue is empty.
var ErrNoJob = errors.New("no training job available")

// ClaimedJob is one dequeued training job ready to run.
type ClaimedJob struct {
	JobID string
	Kind  string
	Spec  json.RawMessage
}

// Store is the narrow read/write surface over the shared training status
// records. The worker writes through it; the status endpoint only reads.
// The in-memory implementation backs tests, the Postgres one production.
type Store interface {
	// Enqueue creates the queued record for a freshly dispatched job.
	Enqueue(ctx context.Context, jobID, kind string, spec json.RawMessage) error
	// Claim dequeues the oldest queued job and marks it running.
	Claim(ctx context.Context) (ClaimedJob, error)
	// Get reads one record. Unknown ids return domain.ErrNotFound; callers
	// translate that into a status of "unknown", never into a failure.
	Get(ctx context.Context, jobID string) (domain.TrainingRecord, error)
	// UpdateProgress mutates the live-progress fields. current_step is
	// monotonic: a stale update never decreases it.
	UpdateProgress(ctx context.Context, jobID string, currentStep, totalSteps int, loss, etaMin, elapsedMin float64) error
	// Finish records the terminal status with results and aggregates.
	Finish(ctx context.Context, jobID string, status domain.TrainingStatus, results []domain.SubtaskResult, cost, trainTime float64, errMsg string) error
}

// Memory is a map-backed Store for tests and single-process setups.
type Memory struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
}

type memoryRecord struct {
	rec  domain.TrainingRecord
	spec json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*memoryRecord)}
}

func (m *Memory) Enqueue(_ context.Context, jobID, kind string, spec json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.records[jobID] = &memoryRecord{
		rec: domain.TrainingRecord{
			JobID:     jobID,
			Kind:      kind,
			Status:    domain.TrainingQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		spec: append(json.RawMessage(nil), spec...),
	}
	return nil
}

func (m *Memory) Claim(_ context.Context) (ClaimedJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *memoryRecord
	for _, r := range m.records {
		if r.rec.Status != domain.TrainingQueued {
			continue
		}
		if oldest == nil || r.rec.CreatedAt.Before(oldest.rec.CreatedAt) {
			oldest = r
		}
	}
	if oldest == nil {
		return ClaimedJob{}, ErrNoJob
	}
	oldest.rec.Status = domain.TrainingRunning
	oldest.rec.UpdatedAt = time.Now()
	return ClaimedJob{JobID: oldest.rec.JobID, Kind: oldest.rec.Kind, Spec: oldest.spec}, nil
}

func (m *Memory) Get(_ context.Context, jobID string) (domain.TrainingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[jobID]
	if !ok {
		return domain.TrainingRecord{}, domain.ErrNotFound
	}
	rec := r.rec
	rec.Results = append([]domain.SubtaskResult(nil), r.rec.Results...)
	return rec, nil
}

func (m *Memory) UpdateProgress(_ context.Context, jobID string, currentStep, totalSteps int, loss, etaMin, elapsedMin float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if currentStep > r.rec.CurrentStep {
		r.rec.CurrentStep = currentStep
	}
	r.rec.TotalSteps = totalSteps
	r.rec.Loss = loss
	r.rec.EtaMin = etaMin
	r.rec.ElapsedMin = elapsedMin
	r.rec.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) Finish(_ context.Context, jobID string, status domain.TrainingStatus, results []domain.SubtaskResult, cost, trainTime float64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	r.rec.Status = status
	r.rec.Results = append([]domain.SubtaskResult(nil), results...)
	sort.SliceStable(r.rec.Results, func(i, j int) bool { return r.rec.Results[i].Name < r.rec.Results[j].Name })
	r.rec.Cost = cost
	r.rec.TrainTime = trainTime
	r.rec.Error = errMsg
	r.rec.UpdatedAt = time.Now()
	return nil
}

var _ Store = (*Memory)(nil)
