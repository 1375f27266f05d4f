package pipeline

import (
	"time"
)

// EventType classifies workflow events.
type EventType string

const (
	// EventStageProgress is emitted after every stage transition.
	EventStageProgress EventType = "stage_progress"

	// EventWorkflowCompleted is the terminal event of a successful run.
	EventWorkflowCompleted EventType = "workflow_completed"

	// EventWorkflowFailed is the terminal event of an aborted or
	// cancelled run.
	EventWorkflowFailed EventType = "workflow_failed"

	// EventBudgetHalted is the terminal event when admission control
	// stopped the run.
	EventBudgetHalted EventType = "budget_halted"
)

// Terminal returns true for event types that end a stream.
func (t EventType) Terminal() bool {
	switch t {
	case EventWorkflowCompleted, EventWorkflowFailed, EventBudgetHalted:
		return true
	default:
		return false
	}
}

// Event is one structured workflow event.
type Event struct {
	Type       EventType              `json:"type"`
	WorkflowID string                 `json:"workflow_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data"`
}

// progressEvent builds a stage-progress event. percent_complete is
// stages completed over total stages and is monotonically
// non-decreasing across a run.
func progressEvent(workflowID, stageName string, stagesCompleted, totalStages int, elapsed time.Duration) Event {
	return Event{
		Type:       EventStageProgress,
		WorkflowID: workflowID,
		Timestamp:  time.Now(),
		Data: map[string]interface{}{
			"stage_name":       stageName,
			"percent_complete": float64(stagesCompleted) / float64(totalStages) * 100,
			"elapsed_ms":       elapsed.Milliseconds(),
		},
	}
}

// terminalEvent builds the final event of a run, carrying the workflow
// summary.
func terminalEvent(eventType EventType, state *WorkflowState, elapsed time.Duration) Event {
	return Event{
		Type:       eventType,
		WorkflowID: state.ID,
		Timestamp:  time.Now(),
		Data: map[string]interface{}{
			"status":     string(state.Status),
			"summary":    state.Summary(),
			"total_cost": state.TotalCost.String(),
			"stages":     len(state.StageResults),
			"elapsed_ms": elapsed.Milliseconds(),
		},
	}
}
