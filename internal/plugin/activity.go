package plugin

import (
	"context"
	"sort"
	"sync"

	"github.com/soyeahso/nanoagent/internal/hooks"
	"github.com/soyeahso/nanoagent/internal/logging"
)

// ActivityID is the ID of the activity plugin.
const ActivityID = "activity"

// Activity traces every lifecycle event at debug level and keeps per-event
// counts.
type Activity struct {
	mu     sync.Mutex
	counts map[string]int
	hooks  *hooks.Manager
	log    *logging.Logger
}

// NewActivity creates the activity plugin.
func NewActivity() *Activity {
	return &Activity{counts: make(map[string]int)}
}

func (a *Activity) ID() string { return ActivityID }

// Init subscribes to every known event.
func (a *Activity) Init(_ context.Context, api API) error {
	a.hooks = api.Hooks
	a.log = api.Log
	for _, ev := range hooks.AllEvents {
		a.hooks.On(ev, ActivityID, a.record)
	}
	return nil
}

// Close unsubscribes from every event.
func (a *Activity) Close() error {
	if a.hooks == nil {
		return nil
	}
	for _, ev := range hooks.AllEvents {
		a.hooks.Off(ev, ActivityID)
	}
	return nil
}

// Count returns how many times event has fired since Init.
func (a *Activity) Count(event string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[event]
}

// Events returns the names of events seen so far, sorted.
func (a *Activity) Events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.counts))
	for ev := range a.counts {
		out = append(out, ev)
	}
	sort.Strings(out)
	return out
}

func (a *Activity) record(_ context.Context, p hooks.Payload) error {
	a.mu.Lock()
	a.counts[p.Event]++
	a.mu.Unlock()

	ev := a.log.Debug().Str("event", p.Event)
	for _, key := range []string{"session", "tool", "file", "reason"} {
		if v, ok := p.Data[key].(string); ok && v != "" {
			ev = ev.Str(key, v)
		}
	}
	ev.Msg("lifecycle event")
	return nil
}
