// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Machine-readable rejection reasons surfaced across external interfaces.
const (
	ReasonDailyBudgetExceeded   = "daily_budget_exceeded"
	ReasonMonthlyBudgetExceeded = "monthly_budget_exceeded"
	ReasonTierRestricted        = "model_tier_restricted"
	ReasonCancelled             = "cancelled"
	ReasonStageFailed           = "stage_failed"
)

// BackendError represents a failure from a model-serving backend.
// Use this for errors originating from external providers. Backend
// errors are transient: the router absorbs them via a single fallback
// attempt, and only a double failure propagates further.
type BackendError struct {
	// Backend is the backend identifier (e.g., "openai-mini", "bedrock-mini").
	Backend string

	// StatusCode is the HTTP status code, if applicable.
	StatusCode int

	// Message is the human-readable error message.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	msg := fmt.Sprintf("backend %s error", e.Backend)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", msg, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *BackendError) ErrorType() string { return "backend" }

// IsRetryable implements ErrorClassifier. Backend failures are
// candidates for a fallback attempt against the secondary backend.
func (e *BackendError) IsRetryable() bool { return true }

// BudgetExceededError represents a tenant spending ceiling rejection.
// It is permanent until the period rolls over and is never retried
// automatically.
type BudgetExceededError struct {
	// TenantID is the tenant whose ceiling was hit.
	TenantID string

	// Period is the budget window that was exceeded ("day" or "month").
	Period string

	// Limit is the monetary ceiling for the period.
	Limit decimal.Decimal

	// Spent is the recorded spend so far in the period.
	Spent decimal.Decimal

	// Estimate is the pre-flight estimate that pushed past the ceiling.
	Estimate decimal.Decimal
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("tenant %s %sly budget exceeded: spent %s + estimate %s > limit %s",
		e.TenantID, e.Period, e.Spent, e.Estimate, e.Limit)
}

// Reason returns the machine-readable rejection reason.
func (e *BudgetExceededError) Reason() string {
	if e.Period == "month" {
		return ReasonMonthlyBudgetExceeded
	}
	return ReasonDailyBudgetExceeded
}

// ErrorType implements ErrorClassifier.
func (e *BudgetExceededError) ErrorType() string { return "budget_exceeded" }

// IsRetryable implements ErrorClassifier. Budget rejections require
// external action (upgrade, or wait for the period reset).
func (e *BudgetExceededError) IsRetryable() bool { return false }

// TierRestrictedError indicates the tenant's plan does not allow the
// model tier the task requires. Permanent for the current plan.
type TierRestrictedError struct {
	// TenantID is the tenant that was rejected.
	TenantID string

	// Plan is the tenant's subscription plan name.
	Plan string

	// Tier is the model tier the plan does not allow.
	Tier string
}

// Error implements the error interface.
func (e *TierRestrictedError) Error() string {
	return fmt.Sprintf("tenant %s on plan %q may not use model tier %q", e.TenantID, e.Plan, e.Tier)
}

// Reason returns the machine-readable rejection reason.
func (e *TierRestrictedError) Reason() string { return ReasonTierRestricted }

// ErrorType implements ErrorClassifier.
func (e *TierRestrictedError) ErrorType() string { return "tier_restricted" }

// IsRetryable implements ErrorClassifier.
func (e *TierRestrictedError) IsRetryable() bool { return false }

// StageFailureError represents a pipeline stage that failed after task
// routing was exhausted. Whether it aborts the workflow is decided by
// the stage's declared failure policy, not by this type.
type StageFailureError struct {
	// Stage is the pipeline stage name.
	Stage string

	// Cause is the underlying failure (typically a double backend failure).
	Cause error
}

// Error implements the error interface.
func (e *StageFailureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("stage %q failed", e.Stage)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *StageFailureError) Unwrap() error {
	return e.Cause
}

// Reason returns the cause's machine-readable reason when it carries
// one, ReasonStageFailed otherwise.
func (e *StageFailureError) Reason() string {
	if r := Reason(e.Cause); r != "" {
		return r
	}
	return ReasonStageFailed
}

// ErrorType implements ErrorClassifier.
func (e *StageFailureError) ErrorType() string { return "stage_failure" }

// IsRetryable implements ErrorClassifier.
func (e *StageFailureError) IsRetryable() bool { return false }

// CancelledError indicates a workflow was cancelled by the caller.
type CancelledError struct {
	// WorkflowID is the cancelled workflow.
	WorkflowID string
}

// Error implements the error interface.
func (e *CancelledError) Error() string {
	return fmt.Sprintf("workflow %s cancelled", e.WorkflowID)
}

// Reason returns the machine-readable rejection reason.
func (e *CancelledError) Reason() string { return ReasonCancelled }

// ErrorType implements ErrorClassifier.
func (e *CancelledError) ErrorType() string { return "cancelled" }

// IsRetryable implements ErrorClassifier.
func (e *CancelledError) IsRetryable() bool { return false }

// ValidationError represents user input validation failures.
// Use this for invalid input, malformed data, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "workflow", "tier", "backend")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "tiers.mini", "plans.basic")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
// Use this when an operation exceeds its configured timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "backend invoke", "stage")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
