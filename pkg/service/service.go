// Package service is the caller-facing API: it ties the router, budget
// controller, and orchestrator together and enforces per-tenant
// concurrency limits on workflow starts.
package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/tombee/maestro/pkg/budget"
	pkgerrors "github.com/tombee/maestro/pkg/errors"
	"github.com/tombee/maestro/pkg/pipeline"
	"github.com/tombee/maestro/pkg/router"
)

// Service exposes workflow and budget operations to callers. All
// collaborators are injected; the service holds no global state.
type Service struct {
	orchestrator *pipeline.Orchestrator
	controller   *budget.Controller
	estimator    pipeline.Executor
	store        pipeline.Store
	logger       *slog.Logger
}

// New creates a Service.
func New(orchestrator *pipeline.Orchestrator, controller *budget.Controller, estimator pipeline.Executor, store pipeline.Store, logger *slog.Logger) (*Service, error) {
	if orchestrator == nil {
		return nil, &pkgerrors.ValidationError{Field: "orchestrator", Message: "orchestrator cannot be nil"}
	}
	if controller == nil {
		return nil, &pkgerrors.ValidationError{Field: "controller", Message: "budget controller cannot be nil"}
	}
	if estimator == nil {
		return nil, &pkgerrors.ValidationError{Field: "estimator", Message: "estimator cannot be nil"}
	}
	if store == nil {
		return nil, &pkgerrors.ValidationError{Field: "store", Message: "store cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		orchestrator: orchestrator,
		controller:   controller,
		estimator:    estimator,
		store:        store,
		logger:       logger,
	}, nil
}

// StartWorkflow launches a workflow for a tenant, enforcing the plan's
// concurrent workflow ceiling. Returns the new workflow's ID.
func (s *Service) StartWorkflow(ctx context.Context, tenantID string, inputs map[string]string) (string, error) {
	plan, err := s.controller.Plan(ctx, tenantID)
	if err != nil {
		return "", err
	}

	running, err := s.runningCount(ctx, tenantID)
	if err != nil {
		return "", pkgerrors.Wrap(err, "counting running workflows")
	}
	if plan.MaxConcurrentWorkflows > 0 && running >= plan.MaxConcurrentWorkflows {
		return "", &pkgerrors.ValidationError{
			Field:      "tenant_id",
			Message:    "tenant has reached its concurrent workflow limit",
			Suggestion: "wait for a running workflow to finish or cancel one",
		}
	}

	state, err := s.orchestrator.Start(ctx, tenantID, inputs)
	if err != nil {
		return "", err
	}
	return state.ID, nil
}

// GetBudgetStatus returns a tenant's current budget snapshot.
func (s *Service) GetBudgetStatus(ctx context.Context, tenantID string) (*budget.Snapshot, error) {
	return s.controller.Status(ctx, tenantID)
}

// EstimateCost returns the pre-flight estimate for a task without
// executing it or touching any budget state.
func (s *Service) EstimateCost(descriptor router.TaskDescriptor) (decimal.Decimal, error) {
	return s.estimator.Estimate(descriptor)
}

// CancelWorkflow requests cancellation of a running workflow.
func (s *Service) CancelWorkflow(ctx context.Context, workflowID string) error {
	return s.orchestrator.Cancel(ctx, workflowID)
}

// GetWorkflow returns a workflow's current state.
func (s *Service) GetWorkflow(ctx context.Context, workflowID string) (*pipeline.WorkflowState, error) {
	return s.orchestrator.Get(ctx, workflowID)
}

// ListWorkflows returns a tenant's workflows, or all workflows when
// tenantID is empty.
func (s *Service) ListWorkflows(ctx context.Context, tenantID string) ([]*pipeline.WorkflowState, error) {
	return s.store.List(ctx, tenantID)
}

// Subscribe attaches to a workflow's event stream.
func (s *Service) Subscribe(workflowID string) (<-chan pipeline.Event, func()) {
	return s.orchestrator.Subscribe(workflowID)
}

// runningCount counts a tenant's non-terminal workflows.
func (s *Service) runningCount(ctx context.Context, tenantID string) (int, error) {
	workflows, err := s.store.List(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	running := 0
	for _, workflow := range workflows {
		if !workflow.Status.IsTerminal() {
			running++
		}
	}
	return running, nil
}
