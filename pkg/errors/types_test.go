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
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBackendError(t *testing.T) {
	cause := New("connection refused")
	err := &BackendError{
		Backend:    "openai-mini",
		StatusCode: 503,
		Message:    "upstream unavailable",
		Cause:      cause,
	}

	if !strings.Contains(err.Error(), "openai-mini") {
		t.Errorf("expected backend name in message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "HTTP 503") {
		t.Errorf("expected status code in message, got %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if !err.IsRetryable() {
		t.Error("backend errors must be retryable")
	}
}

func TestBudgetExceededError_Reason(t *testing.T) {
	tests := []struct {
		name   string
		period string
		want   string
	}{
		{"daily", "day", ReasonDailyBudgetExceeded},
		{"monthly", "month", ReasonMonthlyBudgetExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &BudgetExceededError{
				TenantID: "tenant-1",
				Period:   tt.period,
				Limit:    decimal.RequireFromString("50.00"),
				Spent:    decimal.RequireFromString("49.99"),
				Estimate: decimal.RequireFromString("1.00"),
			}
			if got := err.Reason(); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
			if err.IsRetryable() {
				t.Error("budget rejections must not be retryable")
			}
		})
	}
}

func TestTierRestrictedError(t *testing.T) {
	err := &TierRestrictedError{TenantID: "t1", Plan: "basic", Tier: "full"}

	if err.Reason() != ReasonTierRestricted {
		t.Errorf("Reason() = %q, want %q", err.Reason(), ReasonTierRestricted)
	}
	if err.IsRetryable() {
		t.Error("tier restrictions must not be retryable")
	}
	if !strings.Contains(err.Error(), "basic") || !strings.Contains(err.Error(), "full") {
		t.Errorf("expected plan and tier in message, got %q", err.Error())
	}
}

func TestStageFailureError_Unwrap(t *testing.T) {
	inner := &BackendError{Backend: "bedrock-full", Message: "timeout"}
	err := &StageFailureError{Stage: "persona-build", Cause: inner}

	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatal("expected to unwrap BackendError from StageFailureError")
	}
	if backendErr.Backend != "bedrock-full" {
		t.Errorf("unwrapped backend = %q, want bedrock-full", backendErr.Backend)
	}
}

func TestReasonHelper(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"tier restricted", &TierRestrictedError{}, ReasonTierRestricted},
		{"cancelled", &CancelledError{WorkflowID: "wf-1"}, ReasonCancelled},
		{"wrapped budget", Wrap(&BudgetExceededError{Period: "day"}, "checking"), ReasonDailyBudgetExceeded},
		{"plain error", New("boom"), ""},
		{"bare stage failure", &StageFailureError{Stage: "x"}, ReasonStageFailed},
		{"stage failure over backend error", &StageFailureError{
			Stage: "x",
			Cause: &BackendError{Backend: "b", Message: "down"},
		}, ReasonStageFailed},
		{"stage failure over cancellation", &StageFailureError{
			Stage: "x",
			Cause: &CancelledError{WorkflowID: "wf-1"},
		}, ReasonCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reason(tt.err); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&BackendError{Backend: "b"}) {
		t.Error("BackendError should be retryable")
	}
	if !IsRetryable(&TimeoutError{Operation: "backend invoke"}) {
		t.Error("TimeoutError should be retryable")
	}
	if IsRetryable(&BudgetExceededError{}) {
		t.Error("BudgetExceededError should not be retryable")
	}
	if IsRetryable(New("opaque")) {
		t.Error("unknown errors should not be retryable")
	}
}
