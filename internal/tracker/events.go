package tracker

import "github.com/claude/liftlog/internal/models"

// EventType names a tracker state change.
type EventType string

const (
	EventWorkoutDataLoaded EventType = "workout_data_loaded"
	EventPositionChanged   EventType = "position_changed"
	EventResultSaved       EventType = "result_saved"
	EventResultUpdated     EventType = "result_updated"
	EventResultDeleted     EventType = "result_deleted"
	EventDataImported      EventType = "data_imported"
	EventDataCleared       EventType = "data_cleared"
)

// Event is delivered to subscribers. Only the fields relevant to Type are set.
type Event struct {
	Type     EventType        `json:"type"`
	Data     models.Record    `json:"data,omitempty"`
	Position *models.Position `json:"position,omitempty"`
	Result   *models.Result   `json:"result,omitempty"`
	ResultID string           `json:"resultId,omitempty"`
}

// Listener receives tracker events synchronously.
type Listener func(Event)

type subscription struct {
	id int
	fn Listener
}

// Subscribe registers fn and returns a function that removes it.
// Listeners run in subscription order on the goroutine that caused the
// event.
func (t *Tracker) Subscribe(fn Listener) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextSubID++
	id := t.nextSubID
	t.listeners = append(t.listeners, subscription{id: id, fn: fn})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, s := range t.listeners {
			if s.id == id {
				t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
				return
			}
		}
	}
}

// notify must be called without t.mu held.
func (t *Tracker) notify(ev Event) {
	t.mu.Lock()
	listeners := make([]subscription, len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, s := range listeners {
		t.deliver(s, ev)
	}
}

func (t *Tracker) deliver(s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			t.metrics.ListenerPanic()
			t.log.Error("tracker: listener panicked", "event", ev.Type, "subscriber", s.id, "panic", r)
		}
	}()
	s.fn(ev)
}
