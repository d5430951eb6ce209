package domain

import "time"

// TaskStatus enumerates the lifecycle states of one vendor generation task
// as observed from this service.
type TaskStatus string

const (
	TaskSubmitted  TaskStatus = "submitted"
	TaskProcessing TaskStatus = "processing"
	TaskSucceeded  TaskStatus = "succeeded"
	TaskFailed     TaskStatus = "failed"
	// TaskTimedOut is a local observation: the poll deadline elapsed without
	// the vendor reporting a terminal state. The vendor-side task id remains
	// valid for a later out-of-band status check.
	TaskTimedOut TaskStatus = "timed_out"
)

// IsTerminal reports whether no further transition occurs for the status.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskTimedOut:
		return true
	default:
		return false
	}
}

// TrainingStatus enumerates the lifecycle states of one fine-tuning job.
type TrainingStatus string

const (
	TrainingQueued    TrainingStatus = "queued"
	TrainingRunning   TrainingStatus = "running"
	TrainingSucceeded TrainingStatus = "succeeded"
	TrainingFailed    TrainingStatus = "failed"
	// TrainingUnknown is returned for job ids the store has never seen. It is
	// a normal answer, not an error: dispatch and visibility are decoupled.
	TrainingUnknown TrainingStatus = "unknown"
)

// SubtaskResult is the outcome of one item within a training job.
type SubtaskResult struct {
	Name       string  `json:"name"`
	Ok         bool    `json:"ok"`
	Message    string  `json:"message,omitempty"`
	WeightsURL string  `json:"weights_url,omitempty"`
	Cost       float64 `json:"cost,omitempty"`
}

// TrainingRecord is the shared status record for a fire-and-forget training
// job. The worker creates and mutates it; the status endpoint only reads it.
type TrainingRecord struct {
	JobID       string          `json:"job_id"`
	Kind        string          `json:"kind"`
	Status      TrainingStatus  `json:"status"`
	Results     []SubtaskResult `json:"results,omitempty"`
	Cost        float64         `json:"cost"`
	TrainTime   float64         `json:"train_time"`
	CurrentStep int             `json:"current_step"`
	TotalSteps  int             `json:"total_steps"`
	Loss        float64         `json:"loss"`
	EtaMin      float64         `json:"eta_min"`
	ElapsedMin  float64         `json:"elapsed_min"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
