package backend

import (
	"context"
	"testing"

	pkgerrors "github.com/tombee/maestro/pkg/errors"
)

type staticClient struct {
	name string
}

func (c *staticClient) Name() string { return c.name }

func (c *staticClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	return &Response{Text: "ok", TokensIn: 1, TokensOut: 1, Model: req.Model}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(&staticClient{name: "openai-mini"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	client, err := registry.Get("openai-mini")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if client.Name() != "openai-mini" {
		t.Errorf("Name() = %q, want openai-mini", client.Name())
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("missing")
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}

	var notFound *pkgerrors.NotFoundError
	if !pkgerrors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %T", err)
	}
	if notFound.Resource != "backend" {
		t.Errorf("Resource = %q, want backend", notFound.Resource)
	}
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(nil); err == nil {
		t.Error("expected error registering nil client")
	}
	if err := registry.Register(&staticClient{name: ""}); err == nil {
		t.Error("expected error registering unnamed client")
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := registry.Register(&staticClient{name: name}); err != nil {
			t.Fatalf("Register(%s) failed: %v", name, err)
		}
	}

	ids := registry.List()
	want := []string{"alpha", "mid", "zeta"}
	if len(ids) != len(want) {
		t.Fatalf("List() returned %d ids, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
