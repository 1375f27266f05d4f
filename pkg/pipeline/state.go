// Package pipeline drives a fixed ordered sequence of named stages for
// one workflow run, checking the budget before each task, routing tasks
// through tiered backends, and streaming ordered progress events to any
// number of subscribers.
package pipeline

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a workflow run. running is the only
// non-terminal status; once a run leaves it, the state is immutable.
type Status string

const (
	// StatusRunning means stages are still executing.
	StatusRunning Status = "running"

	// StatusCompleted means every stage finished.
	StatusCompleted Status = "completed"

	// StatusFailed means a stage failure aborted the run, or the run
	// was cancelled.
	StatusFailed Status = "failed"

	// StatusBudgetHalted means admission control rejected a stage task.
	StatusBudgetHalted Status = "budget_halted"
)

// IsTerminal returns true if no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusBudgetHalted
}

// StageResult is the accumulated output of one completed stage.
type StageResult struct {
	// Stage is the stage name.
	Stage string `json:"stage"`

	// Output is the stage's accumulated text output. For degraded
	// stages this is the declared placeholder.
	Output string `json:"output"`

	// Cost is the total cost of the stage's tasks.
	Cost decimal.Decimal `json:"cost"`

	// Degraded marks stages that failed but continued under the
	// degrade policy.
	Degraded bool `json:"degraded,omitempty"`
}

// StageError records one stage-level failure without necessarily
// aborting the run.
type StageError struct {
	// Stage is the stage that failed.
	Stage string `json:"stage"`

	// Reason is the machine-readable reason, when one exists
	// (e.g., "daily_budget_exceeded", "cancelled").
	Reason string `json:"reason,omitempty"`

	// Message is the human-readable detail.
	Message string `json:"message"`
}

// WorkflowState is the full state of one pipeline run. It is created
// when the workflow starts, mutated only by the orchestrator as stages
// complete, and frozen once Status leaves running.
type WorkflowState struct {
	// ID is the opaque workflow identifier.
	ID string `json:"id"`

	// TenantID scopes the run for budgeting.
	TenantID string `json:"tenant_id"`

	// Inputs are the caller-provided workflow inputs.
	Inputs map[string]string `json:"inputs,omitempty"`

	// StageResults holds completed stage outputs in stage order.
	StageResults []StageResult `json:"stage_results"`

	// TotalCost is the running sum of executed task costs.
	TotalCost decimal.Decimal `json:"total_cost"`

	// Errors holds stage-level failures in occurrence order.
	Errors []StageError `json:"errors,omitempty"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StageOutput returns the output of a completed stage by name, with a
// found flag. Later stages use this to consume earlier outputs.
func (w *WorkflowState) StageOutput(stage string) (string, bool) {
	for _, result := range w.StageResults {
		if result.Stage == stage {
			return result.Output, true
		}
	}
	return "", false
}

// Summary renders a short human-readable description of the final
// state, carried on terminal events. No stack traces cross this
// boundary.
func (w *WorkflowState) Summary() string {
	switch w.Status {
	case StatusCompleted:
		return fmt.Sprintf("workflow completed: %d stages, total cost $%s",
			len(w.StageResults), w.TotalCost.StringFixed(4))
	case StatusBudgetHalted:
		reason := "budget exhausted"
		if len(w.Errors) > 0 {
			reason = w.Errors[len(w.Errors)-1].Reason
		}
		return "workflow halted by budget: " + reason
	case StatusFailed:
		if len(w.Errors) > 0 {
			last := w.Errors[len(w.Errors)-1]
			if last.Reason != "" {
				return "workflow failed: " + last.Reason
			}
			return "workflow failed at stage " + last.Stage
		}
		return "workflow failed"
	default:
		return "workflow " + string(w.Status)
	}
}
