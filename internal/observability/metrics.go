package observability

import (
	"expvar"
	"fmt"
	"sync"
)

// Recorder is the metrics sink the engine notifies. Implementations must be
// safe for concurrent use.
type Recorder interface {
	// IncCounter adds delta to the named monotonically increasing counter.
	IncCounter(name string, delta int64)
	// SetGauge records the current value of the named gauge.
	SetGauge(name string, value int64)
}

// NopRecorder discards all notifications.
type NopRecorder struct{}

// IncCounter discards the notification.
func (NopRecorder) IncCounter(string, int64) {}

// SetGauge discards the notification.
func (NopRecorder) SetGauge(string, int64) {}

// ExpvarRecorder publishes metrics as expvar integers so the web listener's
// /debug/vars endpoint exposes them. Names are prefixed and suffixed with
// static tags at construction.
type ExpvarRecorder struct {
	prefix string

	mu   sync.Mutex
	vars map[string]*expvar.Int
}

// NewExpvarRecorder creates a recorder publishing under "mud." plus any
// static tags rendered into the prefix.
//
// Postcondition: Returns a ready Recorder; duplicate construction with the
// same tags reuses already-published vars.
func NewExpvarRecorder(tags map[string]string) *ExpvarRecorder {
	prefix := "mud."
	for k, v := range tags {
		prefix += fmt.Sprintf("%s=%s.", k, v)
	}
	return &ExpvarRecorder{
		prefix: prefix,
		vars:   make(map[string]*expvar.Int),
	}
}

func (r *ExpvarRecorder) get(name string) *expvar.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.vars[name]; ok {
		return v
	}
	full := r.prefix + name
	// Re-publishing a name panics; reuse the existing var if present.
	if existing := expvar.Get(full); existing != nil {
		if iv, ok := existing.(*expvar.Int); ok {
			r.vars[name] = iv
			return iv
		}
	}
	v := expvar.NewInt(full)
	r.vars[name] = v
	return v
}

// IncCounter adds delta to the named counter.
func (r *ExpvarRecorder) IncCounter(name string, delta int64) {
	r.get(name).Add(delta)
}

// SetGauge records the current value of the named gauge.
func (r *ExpvarRecorder) SetGauge(name string, value int64) {
	r.get(name).Set(value)
}
