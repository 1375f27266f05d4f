package pipeline

import (
	"log/slog"
	"sync"

	"github.com/tombee/maestro/internal/log"
)

// subscriberBuffer is the per-subscriber channel depth. Production rate
// is decoupled from consumption rate up to this depth; a subscriber
// that falls further behind loses events rather than stalling the
// workflow.
const subscriberBuffer = 64

// Broker fans workflow events out to per-workflow subscribers. Events
// for a single workflow are published from that workflow's goroutine,
// so each subscriber observes them in stage order, exactly once.
// Events for different workflows have no relative ordering.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
	logger *slog.Logger
}

// NewBroker creates an event broker.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subs:   make(map[string]map[int]chan Event),
		logger: logger,
	}
}

// Subscribe attaches to a workflow's event stream. The returned channel
// is closed when the workflow publishes a terminal event or when the
// returned cancel func is called. The broker keeps no state for
// finished workflows; whether a workflow already finished is the
// store's question, and the orchestrator answers it before subscribing.
func (b *Broker) Subscribe(workflowID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.subs[workflowID] == nil {
		b.subs[workflowID] = make(map[int]chan Event)
	}
	id := b.nextID
	b.nextID++
	b.subs[workflowID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, exists := b.subs[workflowID][id]; exists {
			delete(b.subs[workflowID], id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its workflow.
// Terminal events close the stream afterwards.
func (b *Broker) Publish(event Event) {
	b.mu.RLock()
	channels := make([]chan Event, 0, len(b.subs[event.WorkflowID]))
	for _, ch := range b.subs[event.WorkflowID] {
		channels = append(channels, ch)
	}
	b.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				slog.String(log.WorkflowIDKey, event.WorkflowID),
				slog.String(log.EventKey, string(event.Type)))
		}
	}

	if event.Type.Terminal() {
		b.closeWorkflow(event.WorkflowID)
	}
}

// SubscriberCount returns the number of live subscribers for a workflow.
func (b *Broker) SubscriberCount(workflowID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[workflowID])
}

// closeWorkflow closes and forgets every subscriber channel for a
// finished workflow, releasing all of its broker state.
func (b *Broker) closeWorkflow(workflowID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[workflowID] {
		close(ch)
	}
	delete(b.subs, workflowID)
}
