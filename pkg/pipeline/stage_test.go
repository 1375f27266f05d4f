package pipeline

import (
	"strings"
	"testing"

	"github.com/tombee/maestro/pkg/backend"
	pkgerrors "github.com/tombee/maestro/pkg/errors"
	"github.com/tombee/maestro/pkg/router"
)

func TestValidateStages(t *testing.T) {
	valid := PromptStage("analyze", router.ComplexitySimple, PolicyAbort, "")

	tests := []struct {
		name    string
		stages  []StageDefinition
		wantErr bool
	}{
		{"default pipeline", DefaultStages(), false},
		{"single stage", []StageDefinition{valid}, false},
		{"empty", nil, true},
		{"duplicate names", []StageDefinition{valid, valid}, true},
		{"missing name", []StageDefinition{{Policy: PolicyAbort, Build: valid.Build}}, true},
		{"unknown policy", []StageDefinition{{Name: "x", Policy: "retry", Build: valid.Build}}, true},
		{"missing builder", []StageDefinition{{Name: "x", Policy: PolicyAbort}}, true},
		{"degrade without placeholder", []StageDefinition{{Name: "x", Policy: PolicyDegrade, Build: valid.Build}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStages(tt.stages)
			if tt.wantErr {
				var configErr *pkgerrors.ConfigError
				if !pkgerrors.As(err, &configErr) {
					t.Errorf("expected ConfigError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPromptStageConsumesPriorOutputs(t *testing.T) {
	stage := PromptStage("draft", router.ComplexityBalanced, PolicyAbort, "", "analyze")

	state := &WorkflowState{
		Inputs:       map[string]string{"goal": "launch a product"},
		StageResults: []StageResult{{Stage: "analyze", Output: "market is crowded"}},
	}
	descriptors, err := stage.Build(state)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(descriptors) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(descriptors))
	}

	descriptor := descriptors[0]
	if descriptor.TaskType != "draft" || descriptor.Complexity != router.ComplexityBalanced {
		t.Errorf("unexpected descriptor: %+v", descriptor)
	}
	if !strings.Contains(descriptor.Prompt, "launch a product") {
		t.Error("prompt missing workflow input")
	}
	if !strings.Contains(descriptor.Prompt, "market is crowded") {
		t.Error("prompt missing consumed stage output")
	}
	if descriptor.InputSize != len(descriptor.Prompt) {
		t.Errorf("input size %d does not match prompt length %d", descriptor.InputSize, len(descriptor.Prompt))
	}
}

func TestPromptStageReasoningEffort(t *testing.T) {
	state := &WorkflowState{}

	complex := PromptStage("plan", router.ComplexityComplex, PolicyAbort, "")
	descriptors, err := complex.Build(state)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if descriptors[0].ReasoningEffort != backend.ReasoningHigh {
		t.Errorf("expected high reasoning effort for complex stage, got %q", descriptors[0].ReasoningEffort)
	}

	simple := PromptStage("tidy", router.ComplexitySimple, PolicyAbort, "")
	descriptors, err = simple.Build(state)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if descriptors[0].ReasoningEffort != backend.ReasoningNone {
		t.Errorf("expected no reasoning effort for simple stage, got %q", descriptors[0].ReasoningEffort)
	}
}

func TestDefaultStagesShape(t *testing.T) {
	stages := DefaultStages()
	if len(stages) != 5 {
		t.Fatalf("expected 5 stages, got %d", len(stages))
	}
	if stages[0].Name != StageSituationAnalysis || stages[len(stages)-1].Name != StageMeasurementPlan {
		t.Errorf("unexpected stage order: %s ... %s", stages[0].Name, stages[len(stages)-1].Name)
	}
	for _, stage := range stages[:3] {
		if stage.Policy != PolicyAbort {
			t.Errorf("stage %s: expected abort policy, got %s", stage.Name, stage.Policy)
		}
	}
	for _, stage := range stages[3:] {
		if stage.Policy != PolicyDegrade || stage.Placeholder == "" {
			t.Errorf("stage %s: expected degrade policy with placeholder", stage.Name)
		}
	}
}
