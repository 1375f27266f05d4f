package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tombee/maestro/internal/log"
	"github.com/tombee/maestro/pkg/budget"
	pkgerrors "github.com/tombee/maestro/pkg/errors"
	"github.com/tombee/maestro/pkg/router"
)

// Executor runs routed tasks. *router.Router satisfies this interface.
type Executor interface {
	Execute(ctx context.Context, descriptor router.TaskDescriptor) (*router.ExecutionResult, error)
	Estimate(descriptor router.TaskDescriptor) (decimal.Decimal, error)
}

// Admission gates and accounts task spend. *budget.Controller satisfies
// this interface.
type Admission interface {
	Check(ctx context.Context, tenantID string, descriptor router.TaskDescriptor) (*budget.Decision, error)
	Record(ctx context.Context, tenantID string, result *router.ExecutionResult) error
}

// Orchestrator runs workflows through a fixed ordered stage list. Each
// workflow executes on its own goroutine; stages within a workflow run
// strictly sequentially, and every task passes admission control before
// it reaches a backend.
type Orchestrator struct {
	stages    []StageDefinition
	executor  Executor
	admission Admission
	store     Store
	broker    *Broker
	logger    *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewOrchestrator creates an orchestrator over a validated stage list.
func NewOrchestrator(stages []StageDefinition, executor Executor, admission Admission, store Store, broker *Broker, logger *slog.Logger) (*Orchestrator, error) {
	if err := ValidateStages(stages); err != nil {
		return nil, err
	}
	if executor == nil {
		return nil, &pkgerrors.ValidationError{Field: "executor", Message: "executor cannot be nil"}
	}
	if admission == nil {
		return nil, &pkgerrors.ValidationError{Field: "admission", Message: "admission controller cannot be nil"}
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if broker == nil {
		broker = NewBroker(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		stages:    stages,
		executor:  executor,
		admission: admission,
		store:     store,
		broker:    broker,
		logger:    logger,
		cancels:   make(map[string]context.CancelFunc),
	}, nil
}

// Stages returns the orchestrator's stage list.
func (o *Orchestrator) Stages() []StageDefinition {
	return o.stages
}

// Start creates a workflow and begins executing its stages on a new
// goroutine. The run outlives the caller's context; use Cancel to stop
// it.
func (o *Orchestrator) Start(ctx context.Context, tenantID string, inputs map[string]string) (*WorkflowState, error) {
	if tenantID == "" {
		return nil, &pkgerrors.ValidationError{Field: "tenant_id", Message: "tenant ID cannot be empty"}
	}

	state := &WorkflowState{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Inputs:    inputs,
		TotalCost: decimal.Zero,
		Status:    StatusRunning,
		CreatedAt: time.Now(),
	}
	if err := o.store.Create(ctx, state); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[state.ID] = cancel
	o.mu.Unlock()

	o.wfLogger(state).Info("workflow started", slog.Int("stages", len(o.stages)))

	go o.run(runCtx, state)

	return copyState(state), nil
}

// Cancel requests cancellation of a running workflow. The current
// in-flight task is not interrupted mid-call, but its result is
// discarded and no further stages run.
func (o *Orchestrator) Cancel(ctx context.Context, workflowID string) error {
	o.mu.Lock()
	cancel, exists := o.cancels[workflowID]
	o.mu.Unlock()

	if !exists {
		state, err := o.store.Get(ctx, workflowID)
		if err != nil {
			return err
		}
		if state.Status.IsTerminal() {
			return &pkgerrors.ValidationError{
				Field:   "workflow_id",
				Message: "workflow " + workflowID + " already finished",
			}
		}
		return &pkgerrors.NotFoundError{Resource: "workflow", ID: workflowID}
	}

	cancel()
	return nil
}

// Get returns a copy of a workflow's current state.
func (o *Orchestrator) Get(ctx context.Context, workflowID string) (*WorkflowState, error) {
	return o.store.Get(ctx, workflowID)
}

// Subscribe attaches to a workflow's event stream. Subscribing to a
// workflow that already finished yields a channel that closes without
// delivering anything.
func (o *Orchestrator) Subscribe(workflowID string) (<-chan Event, func()) {
	events, cancel := o.broker.Subscribe(workflowID)

	// Subscribe first, then read the store: a workflow that turns
	// terminal after the read still closes the stream via its terminal
	// event, and one that finished before it is closed here.
	if state, err := o.store.Get(context.Background(), workflowID); err == nil && state.Status.IsTerminal() {
		cancel()
	}
	return events, cancel
}

// wfLogger returns the orchestrator's logger with workflow context.
func (o *Orchestrator) wfLogger(state *WorkflowState) *slog.Logger {
	return log.WithWorkflowContext(o.logger, state.ID, state.TenantID)
}

// run executes every stage in order. It is the only writer of the
// workflow's state after Start returns.
func (o *Orchestrator) run(ctx context.Context, state *WorkflowState) {
	start := time.Now()
	total := len(o.stages)

	for i, stage := range o.stages {
		// Cancellation is observed between stages, never mid-task.
		if ctx.Err() != nil {
			o.cancelled(ctx, state, stage.Name, start)
			return
		}

		stageStart := time.Now()
		result, halt := o.runStage(ctx, state, stage, start)
		if halt {
			return
		}
		stageDuration.WithLabelValues(stage.Name).Observe(time.Since(stageStart).Seconds())
		o.wfLogger(state).Debug("stage completed",
			slog.String(log.StageKey, stage.Name),
			slog.Int64(log.DurationKey, time.Since(stageStart).Milliseconds()))

		state.StageResults = append(state.StageResults, *result)
		if err := o.store.Update(ctx, state); err != nil {
			o.wfLogger(state).Error("persisting workflow state", log.Error(err))
		}
		o.broker.Publish(progressEvent(state.ID, stage.Name, i+1, total, time.Since(start)))
	}

	o.finish(ctx, state, StatusCompleted, EventWorkflowCompleted, start)
}

// runStage executes one stage's tasks. It returns the stage result, or
// halt=true when the stage terminated the workflow (budget halt, abort
// failure, or cancellation discovered mid-stage).
func (o *Orchestrator) runStage(ctx context.Context, state *WorkflowState, stage StageDefinition, runStart time.Time) (*StageResult, bool) {
	descriptors, err := stage.Build(state)
	if err != nil {
		return o.stageFailed(ctx, state, stage, runStart, pkgerrors.Wrap(err, "building stage descriptors"))
	}

	var output strings.Builder
	stageCost := decimal.Zero

	for _, descriptor := range descriptors {
		decision, err := o.admission.Check(ctx, state.TenantID, descriptor)
		if err != nil {
			return o.stageFailed(ctx, state, stage, runStart, pkgerrors.Wrap(err, "budget check"))
		}
		if !decision.Approved {
			o.budgetHalted(ctx, state, stage.Name, decision, runStart)
			return nil, true
		}
		if decision.Snapshot.Warning != budget.WarnNone {
			o.wfLogger(state).Warn("budget warning",
				slog.String("level", string(decision.Snapshot.Warning)),
				slog.String("spent_today", decision.Snapshot.SpentToday.String()),
				slog.String("daily_limit", decision.Snapshot.DailyLimit.String()))
		}

		result, err := o.executor.Execute(ctx, descriptor)

		// A cancellation that landed during the call discards the
		// in-flight result: nothing is recorded or accumulated.
		if ctx.Err() != nil {
			o.cancelled(ctx, state, stage.Name, runStart)
			return nil, true
		}
		if err != nil {
			return o.stageFailed(ctx, state, stage, runStart, pkgerrors.Wrap(err, "routing task"))
		}

		if recordErr := o.admission.Record(ctx, state.TenantID, result); recordErr != nil {
			o.wfLogger(state).Error("recording task spend", log.Error(recordErr))
		}
		stageCost = stageCost.Add(result.Cost)
		state.TotalCost = state.TotalCost.Add(result.Cost)

		if !result.Succeeded {
			cause := result.Err
			if cause == nil {
				cause = pkgerrors.New("task failed on both backends")
			}
			return o.stageFailedWithCost(ctx, state, stage, runStart, cause, stageCost)
		}

		output.WriteString(result.Output)
	}

	return &StageResult{
		Stage:  stage.Name,
		Output: output.String(),
		Cost:   stageCost,
	}, false
}

// stageFailed applies the stage's failure policy with no cost accrued
// yet for the stage.
func (o *Orchestrator) stageFailed(ctx context.Context, state *WorkflowState, stage StageDefinition, runStart time.Time, cause error) (*StageResult, bool) {
	return o.stageFailedWithCost(ctx, state, stage, runStart, cause, decimal.Zero)
}

// stageFailedWithCost applies the stage's failure policy. Degrade
// substitutes the placeholder and keeps going; abort ends the run.
// Spend already accrued by the stage stays accounted either way.
func (o *Orchestrator) stageFailedWithCost(ctx context.Context, state *WorkflowState, stage StageDefinition, runStart time.Time, cause error, stageCost decimal.Decimal) (*StageResult, bool) {
	stageErr := &pkgerrors.StageFailureError{Stage: stage.Name, Cause: cause}
	state.Errors = append(state.Errors, StageError{
		Stage:   stage.Name,
		Reason:  stageErr.Reason(),
		Message: stageErr.Error(),
	})
	logger := log.WithStageContext(o.logger, state.ID, stage.Name)

	if stage.Policy == PolicyDegrade {
		logger.Warn("stage degraded", log.Error(stageErr))
		return &StageResult{
			Stage:    stage.Name,
			Output:   stage.Placeholder,
			Cost:     stageCost,
			Degraded: true,
		}, false
	}

	logger.Error("stage failed, aborting workflow", log.Error(stageErr))
	o.finish(ctx, state, StatusFailed, EventWorkflowFailed, runStart)
	return nil, true
}

// budgetHalted ends the run because admission control rejected a task.
func (o *Orchestrator) budgetHalted(ctx context.Context, state *WorkflowState, stageName string, decision *budget.Decision, runStart time.Time) {
	message := "task rejected by admission control: " + decision.Reason
	if decision.Cause != nil {
		message = decision.Cause.Error()
	}
	o.wfLogger(state).Warn("workflow halted by budget",
		slog.String(log.StageKey, stageName),
		slog.String("reason", decision.Reason))

	state.Errors = append(state.Errors, StageError{
		Stage:   stageName,
		Reason:  decision.Reason,
		Message: message,
	})
	o.finish(ctx, state, StatusBudgetHalted, EventBudgetHalted, runStart)
}

// cancelled ends the run after a cancellation request.
func (o *Orchestrator) cancelled(ctx context.Context, state *WorkflowState, stageName string, runStart time.Time) {
	cause := &pkgerrors.CancelledError{WorkflowID: state.ID}
	o.wfLogger(state).Info("workflow cancelled", slog.String(log.StageKey, stageName))

	state.Errors = append(state.Errors, StageError{
		Stage:   stageName,
		Reason:  cause.Reason(),
		Message: cause.Error(),
	})
	o.finish(ctx, state, StatusFailed, EventWorkflowFailed, runStart)
}

// finish freezes the workflow in a terminal status, persists it, and
// publishes the terminal event, closing all subscriber streams.
func (o *Orchestrator) finish(ctx context.Context, state *WorkflowState, status Status, eventType EventType, runStart time.Time) {
	now := time.Now()
	state.Status = status
	state.CompletedAt = &now

	// Drop the cancel hook before the terminal state becomes visible, so
	// Cancel never races a finished workflow.
	o.mu.Lock()
	if cancel, exists := o.cancels[state.ID]; exists {
		delete(o.cancels, state.ID)
		cancel()
	}
	o.mu.Unlock()

	if err := o.store.Update(ctx, state); err != nil {
		o.wfLogger(state).Error("persisting terminal workflow state", log.Error(err))
	}

	workflowOutcomes.WithLabelValues(string(status)).Inc()
	o.broker.Publish(terminalEvent(eventType, state, time.Since(runStart)))

	o.wfLogger(state).Info("workflow finished",
		slog.String("status", string(status)),
		slog.String("total_cost", state.TotalCost.String()),
		log.Duration("elapsed", time.Since(runStart).Milliseconds()))
}
