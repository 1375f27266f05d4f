package pipeline

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/tombee/maestro/pkg/errors"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := &WorkflowState{
		ID:       "wf-1",
		TenantID: "tenant-1",
		Inputs:   map[string]string{"goal": "launch"},
		Status:   StatusRunning,
	}
	if err := store.Create(ctx, state); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "wf-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TenantID != "tenant-1" || got.Inputs["goal"] != "launch" {
		t.Errorf("unexpected state: %+v", got)
	}
}

func TestMemoryStoreRejectsDuplicateCreate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := &WorkflowState{ID: "wf-1", TenantID: "tenant-1", Status: StatusRunning}
	if err := store.Create(ctx, state); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := store.Create(ctx, state)
	var validationErr *pkgerrors.ValidationError
	if !pkgerrors.As(err, &validationErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "missing")
	var notFound *pkgerrors.NotFoundError
	if !pkgerrors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := &WorkflowState{ID: "wf-1", TenantID: "tenant-1", Status: StatusRunning}
	if err := store.Create(ctx, state); err != nil {
		t.Fatalf("Create: %v", err)
	}

	state.Status = StatusCompleted
	state.TotalCost = decimal.RequireFromString("0.05")
	if err := store.Update(ctx, state); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.Get(ctx, "wf-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusCompleted || got.TotalCost.String() != "0.05" {
		t.Errorf("update not applied: %+v", got)
	}

	err = store.Update(ctx, &WorkflowState{ID: "missing", Status: StatusRunning})
	var notFound *pkgerrors.NotFoundError
	if !pkgerrors.As(err, &notFound) {
		t.Errorf("expected NotFoundError updating missing workflow, got %v", err)
	}
}

func TestMemoryStoreCopiesState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := &WorkflowState{
		ID:           "wf-1",
		TenantID:     "tenant-1",
		Inputs:       map[string]string{"goal": "launch"},
		StageResults: []StageResult{{Stage: "analyze", Output: "done"}},
		Status:       StatusRunning,
	}
	if err := store.Create(ctx, state); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Mutations of the caller's copy must not leak into the store.
	state.Inputs["goal"] = "changed"
	state.StageResults[0].Output = "changed"

	got, err := store.Get(ctx, "wf-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Inputs["goal"] != "launch" {
		t.Errorf("stored inputs mutated: %q", got.Inputs["goal"])
	}
	if got.StageResults[0].Output != "done" {
		t.Errorf("stored stage results mutated: %q", got.StageResults[0].Output)
	}
}

func TestMemoryStoreListByTenant(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, w := range []*WorkflowState{
		{ID: "wf-1", TenantID: "tenant-1", Status: StatusRunning},
		{ID: "wf-2", TenantID: "tenant-1", Status: StatusCompleted},
		{ID: "wf-3", TenantID: "tenant-2", Status: StatusRunning},
	} {
		if err := store.Create(ctx, w); err != nil {
			t.Fatalf("Create %s: %v", w.ID, err)
		}
	}

	scoped, err := store.List(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(scoped) != 2 {
		t.Errorf("expected 2 workflows for tenant-1, got %d", len(scoped))
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 workflows in total, got %d", len(all))
	}
}
