package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeTerminal(t *testing.T) {
	assert.False(t, EventStageProgress.Terminal())
	assert.True(t, EventWorkflowCompleted.Terminal())
	assert.True(t, EventWorkflowFailed.Terminal())
	assert.True(t, EventBudgetHalted.Terminal())
}

func TestProgressEventPercent(t *testing.T) {
	tests := []struct {
		completed int
		total     int
		want      float64
	}{
		{1, 5, 20},
		{2, 5, 40},
		{5, 5, 100},
		{1, 2, 50},
	}

	for _, tt := range tests {
		event := progressEvent("wf-1", "analyze", tt.completed, tt.total, time.Second)
		require.Equal(t, EventStageProgress, event.Type)
		assert.Equal(t, "wf-1", event.WorkflowID)
		assert.InDelta(t, tt.want, event.Data["percent_complete"], 0.001)
		assert.Equal(t, int64(1000), event.Data["elapsed_ms"])
	}
}

func TestTerminalEventCarriesSummary(t *testing.T) {
	state := &WorkflowState{
		ID:        "wf-1",
		Status:    StatusCompleted,
		TotalCost: decimal.RequireFromString("0.1234"),
		StageResults: []StageResult{
			{Stage: "analyze"},
			{Stage: "draft"},
		},
	}

	event := terminalEvent(EventWorkflowCompleted, state, 3*time.Second)
	require.Equal(t, EventWorkflowCompleted, event.Type)
	assert.Equal(t, "wf-1", event.WorkflowID)
	assert.Equal(t, string(StatusCompleted), event.Data["status"])
	assert.Equal(t, "0.1234", event.Data["total_cost"])
	assert.Equal(t, 2, event.Data["stages"])
	assert.Contains(t, event.Data["summary"], "2 stages")
}

func TestSummaryByStatus(t *testing.T) {
	completed := &WorkflowState{Status: StatusCompleted, TotalCost: decimal.RequireFromString("1.5")}
	assert.Contains(t, completed.Summary(), "$1.5000")

	halted := &WorkflowState{
		Status: StatusBudgetHalted,
		Errors: []StageError{{Stage: "draft", Reason: "daily_budget_exceeded"}},
	}
	assert.Contains(t, halted.Summary(), "daily_budget_exceeded")

	failed := &WorkflowState{
		Status: StatusFailed,
		Errors: []StageError{{Stage: "draft", Message: "backend unavailable"}},
	}
	assert.Contains(t, failed.Summary(), "draft")
}
