// Package router selects a model tier for a task, estimates its cost
// before execution, and executes it with single-attempt fallback to a
// secondary backend of the same tier.
package router

import (
	"github.com/tombee/maestro/pkg/backend"
	pkgerrors "github.com/tombee/maestro/pkg/errors"
)

// Complexity is the caller-declared difficulty of a task. It drives
// tier selection via a fixed lookup and nothing else.
type Complexity string

const (
	// ComplexitySimple routes to the cheapest tier.
	ComplexitySimple Complexity = "simple"

	// ComplexityBalanced routes to the mid tier.
	ComplexityBalanced Complexity = "balanced"

	// ComplexityComplex routes to the full tier.
	ComplexityComplex Complexity = "complex"
)

// Valid returns true if the complexity is a known value.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityBalanced, ComplexityComplex:
		return true
	default:
		return false
	}
}

// TaskDescriptor describes one unit of routable work. Descriptors are
// constructed fresh per call, are immutable, and are never persisted:
// they are arguments, not entities.
type TaskDescriptor struct {
	// TaskType tags the kind of work for cost-history bucketing.
	TaskType string

	// Complexity drives tier selection.
	Complexity Complexity

	// InputSize is the input length in token-equivalent units. Zero is
	// valid: the estimate then covers output cost only.
	InputSize int

	// Prompt is the opaque payload forwarded to the backend.
	Prompt string

	// ReasoningEffort optionally requests deeper processing on tiers
	// that support it. A no-op hint on tiers that do not.
	ReasoningEffort backend.ReasoningEffort
}

// Validate checks descriptor fields before routing.
func (d TaskDescriptor) Validate() error {
	if !d.Complexity.Valid() {
		return &pkgerrors.ValidationError{
			Field:      "complexity",
			Message:    "unknown complexity " + string(d.Complexity),
			Suggestion: "use one of: simple, balanced, complex",
		}
	}
	if d.InputSize < 0 {
		return &pkgerrors.ValidationError{
			Field:   "input_size",
			Message: "input size cannot be negative",
		}
	}
	return nil
}
