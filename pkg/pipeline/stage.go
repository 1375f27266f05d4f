package pipeline

import (
	"fmt"

	"github.com/tombee/maestro/pkg/backend"
	pkgerrors "github.com/tombee/maestro/pkg/errors"
	"github.com/tombee/maestro/pkg/router"
)

// FailurePolicy declares, statically per stage, what a stage failure
// does to the run. It is never inferred at runtime.
type FailurePolicy string

const (
	// PolicyAbort fails the whole workflow when the stage fails.
	PolicyAbort FailurePolicy = "abort"

	// PolicyDegrade substitutes the stage's placeholder output and
	// continues to the next stage.
	PolicyDegrade FailurePolicy = "degrade"
)

// Valid returns true if the policy is a known value.
func (p FailurePolicy) Valid() bool {
	return p == PolicyAbort || p == PolicyDegrade
}

// DescriptorBuilder constructs the stage's task descriptors from the
// current workflow state. Later stages consume earlier stages' outputs
// through the state.
type DescriptorBuilder func(state *WorkflowState) ([]router.TaskDescriptor, error)

// StageDefinition is one named step of the pipeline.
type StageDefinition struct {
	// Name identifies the stage in results, errors, and events.
	Name string

	// Policy decides whether a failure aborts the run or degrades.
	Policy FailurePolicy

	// Build constructs the stage's descriptors.
	Build DescriptorBuilder

	// Placeholder is the degraded output used under PolicyDegrade.
	Placeholder string
}

// Validate checks a stage list: non-empty, unique names, known
// policies, builders present.
func ValidateStages(stages []StageDefinition) error {
	if len(stages) == 0 {
		return &pkgerrors.ConfigError{
			Key:    "stages",
			Reason: "pipeline must declare at least one stage",
		}
	}
	seen := make(map[string]bool, len(stages))
	for _, stage := range stages {
		if stage.Name == "" {
			return &pkgerrors.ConfigError{Key: "stages", Reason: "stage name cannot be empty"}
		}
		if seen[stage.Name] {
			return &pkgerrors.ConfigError{
				Key:    "stages." + stage.Name,
				Reason: "duplicate stage name",
			}
		}
		seen[stage.Name] = true
		if !stage.Policy.Valid() {
			return &pkgerrors.ConfigError{
				Key:    "stages." + stage.Name,
				Reason: fmt.Sprintf("unknown failure policy %q", stage.Policy),
			}
		}
		if stage.Build == nil {
			return &pkgerrors.ConfigError{
				Key:    "stages." + stage.Name,
				Reason: "stage must declare a descriptor builder",
			}
		}
		if stage.Policy == PolicyDegrade && stage.Placeholder == "" {
			return &pkgerrors.ConfigError{
				Key:    "stages." + stage.Name,
				Reason: "degrade policy requires a placeholder output",
			}
		}
	}
	return nil
}

// PromptStage builds a single-descriptor stage whose prompt is rendered
// from the workflow inputs and any prior stage outputs.
func PromptStage(name string, complexity router.Complexity, policy FailurePolicy, placeholder string, consumes ...string) StageDefinition {
	return StageDefinition{
		Name:        name,
		Policy:      policy,
		Placeholder: placeholder,
		Build: func(state *WorkflowState) ([]router.TaskDescriptor, error) {
			prompt := "Task: " + name + "\n"
			for key, value := range state.Inputs {
				prompt += fmt.Sprintf("%s: %s\n", key, value)
			}
			for _, prior := range consumes {
				if output, ok := state.StageOutput(prior); ok {
					prompt += fmt.Sprintf("\n--- %s ---\n%s\n", prior, output)
				}
			}

			effort := backend.ReasoningNone
			if complexity == router.ComplexityComplex {
				effort = backend.ReasoningHigh
			}

			return []router.TaskDescriptor{{
				TaskType:        name,
				Complexity:      complexity,
				InputSize:       len(prompt),
				Prompt:          prompt,
				ReasoningEffort: effort,
			}}, nil
		},
	}
}

// Stage names of the default marketing-plan pipeline.
const (
	StageSituationAnalysis = "situation-analysis"
	StageOptionGeneration  = "option-generation"
	StagePersonaBuild      = "persona-build"
	StageCalendarBuild     = "calendar-build"
	StageMeasurementPlan   = "measurement-plan"
)

// DefaultStages returns the built-in five-stage pipeline. Earlier
// analysis feeds later stages; the two scaffolding stages at the end
// degrade gracefully instead of discarding the expensive upstream work.
func DefaultStages() []StageDefinition {
	return []StageDefinition{
		PromptStage(StageSituationAnalysis, router.ComplexityBalanced, PolicyAbort, ""),
		PromptStage(StageOptionGeneration, router.ComplexityComplex, PolicyAbort, "",
			StageSituationAnalysis),
		PromptStage(StagePersonaBuild, router.ComplexityBalanced, PolicyAbort, "",
			StageSituationAnalysis, StageOptionGeneration),
		PromptStage(StageCalendarBuild, router.ComplexitySimple, PolicyDegrade,
			"calendar unavailable: schedule content manually from the selected options",
			StageOptionGeneration),
		PromptStage(StageMeasurementPlan, router.ComplexitySimple, PolicyDegrade,
			"measurement plan unavailable: track reach, engagement, and conversion as defaults",
			StageOptionGeneration),
	}
}
