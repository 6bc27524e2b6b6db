package pipeline

import (
	"sync"
	"time"

	"delayreg/internal/dataset"
	"delayreg/internal/diagnostics"
	"delayreg/internal/model"
	"delayreg/internal/regression"
)

// RunStatus represents the overall run status.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SpecStatus represents the status of one model specification within the
// estimation step.
type SpecStatus string

const (
	SpecStatusPending   SpecStatus = "pending"
	SpecStatusActive    SpecStatus = "active"
	SpecStatusCompleted SpecStatus = "completed"
	SpecStatusFailed    SpecStatus = "failed"
)

// SpecState is the runtime state of one specification's estimation.
type SpecState struct {
	mu        sync.Mutex
	Name      string     `json:"name"`
	Variant   string     `json:"variant"`
	Status    SpecStatus `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Error     error      `json:"error,omitempty"`
}

// Start marks the specification as active.
func (s *SpecState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.StartTime = &now
	s.Status = SpecStatusActive
}

// Complete marks the specification as completed.
func (s *SpecState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = SpecStatusCompleted
}

// Fail marks the specification as failed with the given error.
func (s *SpecState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = SpecStatusFailed
	s.Error = err
}

// Snapshot returns the current status and error.
func (s *SpecState) Snapshot() (SpecStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status, s.Error
}

// Estimation bundles everything produced for one specification.
type Estimation struct {
	Variant string
	Spec    *model.Spec
	Result  *regression.Result
	Wald    []*diagnostics.WaldResult
}

// RunState is the shared state of one pipeline run. Steps communicate
// exclusively through it.
type RunState struct {
	mu sync.RWMutex

	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	StartTime time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Variants []string `json:"variants"`

	// Table is the working dataset after filtering and transforms.
	Table *dataset.Table `json:"-"`

	// Specs holds the specifications per variant, in build order.
	Specs map[string][]*model.Spec `json:"-"`

	// SpecStates tracks per-specification progress and failures.
	SpecStates map[string]*SpecState `json:"spec_states"`

	// Estimations holds successful estimations keyed by spec name.
	Estimations map[string]*Estimation `json:"-"`
}

// NewRunState creates a run state for the given run ID and variants.
func NewRunState(id string, variants []string) *RunState {
	return &RunState{
		ID:          id,
		Status:      RunStatusPending,
		StartTime:   time.Now(),
		Variants:    variants,
		Specs:       make(map[string][]*model.Spec),
		SpecStates:  make(map[string]*SpecState),
		Estimations: make(map[string]*Estimation),
	}
}

// Start marks the run as running.
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// Complete marks the run as completed.
func (r *RunState) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCompleted
}

// Fail marks the run as failed.
func (r *RunState) Fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusFailed
}

// AddSpec registers a specification's state before estimation.
func (r *RunState) AddSpec(variant string, spec *model.Spec) *SpecState {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := &SpecState{Name: spec.Name, Variant: variant, Status: SpecStatusPending}
	r.SpecStates[spec.Name] = state
	return state
}

// StoreEstimation records a successful estimation.
func (r *RunState) StoreEstimation(est *Estimation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Estimations[est.Spec.Name] = est
}

// Estimation returns the estimation for a spec name, if present.
func (r *RunState) Estimation(name string) (*Estimation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	est, ok := r.Estimations[name]
	return est, ok
}

// FailedSpecs returns the specifications that failed, keyed by spec name,
// with their errors.
func (r *RunState) FailedSpecs() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error)
	for name, state := range r.SpecStates {
		if status, err := state.Snapshot(); status == SpecStatusFailed {
			out[name] = err
		}
	}
	return out
}
