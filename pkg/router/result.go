package router

import (
	"github.com/shopspring/decimal"
)

// ExecutionResult is the outcome of one routed task. Exactly one result
// is produced per Execute call: the attempt that ultimately succeeded,
// or the last failure if both primary and secondary failed.
type ExecutionResult struct {
	// TaskType is carried over from the descriptor for spend bucketing.
	TaskType string

	// Tier is the tier name that handled (or was meant to handle) the task.
	Tier string

	// BackendID is the backend that produced this result.
	BackendID string

	// Fallback is true when the secondary backend served the task.
	Fallback bool

	// Cost is the actual monetary cost, zero for failed tasks.
	Cost decimal.Decimal

	// TokensIn and TokensOut are the accounting quantities the backend reported.
	TokensIn  int
	TokensOut int

	// LatencyMS is the wall-clock duration of the attempt sequence.
	LatencyMS int64

	// Output is the generated text for successful tasks.
	Output string

	// Succeeded indicates whether any attempt succeeded.
	Succeeded bool

	// Err carries the secondary backend's error after a double failure.
	Err error
}
