package pipeline

import (
	"context"
	"fmt"
	"sync"

	pkgerrors "github.com/tombee/maestro/pkg/errors"
)

// Store persists workflow state between stages.
type Store interface {
	// Create stores a new workflow state.
	Create(ctx context.Context, state *WorkflowState) error

	// Get retrieves a workflow state by ID.
	Get(ctx context.Context, id string) (*WorkflowState, error)

	// Update replaces an existing workflow state.
	Update(ctx context.Context, state *WorkflowState) error

	// List returns all workflow states, optionally filtered by tenant.
	List(ctx context.Context, tenantID string) ([]*WorkflowState, error)
}

// MemoryStore is an in-memory Store. It is thread-safe and suitable for
// testing or single-instance deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*WorkflowState
}

// NewMemoryStore creates a new in-memory workflow store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]*WorkflowState),
	}
}

// Create stores a new workflow state.
func (s *MemoryStore) Create(ctx context.Context, state *WorkflowState) error {
	if state == nil {
		return &pkgerrors.ValidationError{Field: "state", Message: "state cannot be nil"}
	}
	if state.ID == "" {
		return &pkgerrors.ValidationError{Field: "id", Message: "workflow ID cannot be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[state.ID]; exists {
		return &pkgerrors.ValidationError{
			Field:      "id",
			Message:    fmt.Sprintf("workflow %s already exists", state.ID),
			Suggestion: "use a unique workflow ID or call Update instead",
		}
	}
	s.workflows[state.ID] = copyState(state)
	return nil
}

// Get retrieves a workflow state by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*WorkflowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.workflows[id]
	if !exists {
		return nil, &pkgerrors.NotFoundError{Resource: "workflow", ID: id}
	}
	return copyState(state), nil
}

// Update replaces an existing workflow state.
func (s *MemoryStore) Update(ctx context.Context, state *WorkflowState) error {
	if state == nil || state.ID == "" {
		return &pkgerrors.ValidationError{Field: "state", Message: "state with ID is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[state.ID]; !exists {
		return &pkgerrors.NotFoundError{Resource: "workflow", ID: state.ID}
	}
	s.workflows[state.ID] = copyState(state)
	return nil
}

// List returns all workflow states, optionally filtered by tenant.
func (s *MemoryStore) List(ctx context.Context, tenantID string) ([]*WorkflowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*WorkflowState
	for _, state := range s.workflows {
		if tenantID == "" || state.TenantID == tenantID {
			results = append(results, copyState(state))
		}
	}
	return results, nil
}

// copyState makes a deep copy so stored state cannot be mutated from
// outside the orchestrator.
func copyState(w *WorkflowState) *WorkflowState {
	if w == nil {
		return nil
	}

	cp := &WorkflowState{
		ID:        w.ID,
		TenantID:  w.TenantID,
		TotalCost: w.TotalCost,
		Status:    w.Status,
		CreatedAt: w.CreatedAt,
	}
	if w.CompletedAt != nil {
		completedAt := *w.CompletedAt
		cp.CompletedAt = &completedAt
	}
	if w.Inputs != nil {
		cp.Inputs = make(map[string]string, len(w.Inputs))
		for k, v := range w.Inputs {
			cp.Inputs[k] = v
		}
	}
	cp.StageResults = append([]StageResult(nil), w.StageResults...)
	cp.Errors = append([]StageError(nil), w.Errors...)
	return cp
}
