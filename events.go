package record

import "context"

// Event model lifecycle event
type Event string

const (
	EventRetrieved Event = "retrieved"
	EventCreating  Event = "creating"
	EventCreated   Event = "created"
	EventUpdating  Event = "updating"
	EventUpdated   Event = "updated"
	EventSaving    Event = "saving"
	EventSaved     Event = "saved"
	EventDeleting  Event = "deleting"
	EventDeleted   Event = "deleted"
	EventRestoring Event = "restoring"
	EventRestored  Event = "restored"
	EventTrashed   Event = "trashed"
)

// Hook lifecycle hook, returning false from an "-ing" hook halts the operation
type Hook func(ctx context.Context, m *Model) bool

// On registers hook for event
func (c *Class) On(event Event, hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hooks == nil {
		c.hooks = map[Event][]Hook{}
	}
	c.hooks[event] = append(c.hooks[event], hook)
}

// Flush removes every hook of the class
func (c *Class) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = nil
}

func (c *Class) eventHooks(event Event) []Hook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Hook(nil), c.hooks[event]...)
}

// fireModelEvent runs the hooks of event, with halt the first false stops and is returned
func (m *Model) fireModelEvent(ctx context.Context, event Event, halt bool) bool {
	for _, hook := range m.class.eventHooks(event) {
		if !hook(ctx, m) && halt {
			m.db.Logger.Info(ctx, "%s hook halted [%s]", event, m.class.Name)
			return false
		}
	}
	return true
}
