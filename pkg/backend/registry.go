package backend

import (
	"sort"
	"sync"

	pkgerrors "github.com/tombee/maestro/pkg/errors"
)

// Registry manages registered backend clients by ID.
// It is safe for concurrent use. Tier configuration references backends
// by ID; routing never inspects client types at runtime.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRegistry creates a new backend registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
	}
}

// Register adds a client under its name. Registering the same name
// twice overwrites the previous client (idempotent).
func (r *Registry) Register(client Client) error {
	if client == nil {
		return &pkgerrors.ValidationError{
			Field:   "client",
			Message: "client cannot be nil",
		}
	}
	if client.Name() == "" {
		return &pkgerrors.ValidationError{
			Field:      "name",
			Message:    "client name cannot be empty",
			Suggestion: "give each backend a unique identifier",
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.Name()] = client
	return nil
}

// Get returns the client registered under the given ID.
func (r *Registry) Get(id string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[id]
	if !exists {
		return nil, &pkgerrors.NotFoundError{Resource: "backend", ID: id}
	}
	return client, nil
}

// List returns the IDs of all registered clients, sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
