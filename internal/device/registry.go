package device

import (
	"fmt"
	"sort"
	"sync"
)

// Logger is the minimal logging interface the registry needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Warn(msg string, args ...any)  {}

// Registry is the in-memory collection of devices for one account.
//
// Upserts come from full device enumerations; deltas come from the change
// feed and are merge-only, so a delta for a device that has never been
// enumerated is dropped rather than conjuring a half-initialized entry.
type Registry struct {
	mu      sync.RWMutex
	devices map[int64]*Device
	log     Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log Logger) *Registry {
	if log == nil {
		log = noopLogger{}
	}
	return &Registry{
		devices: make(map[int64]*Device),
		log:     log,
	}
}

// Upsert creates the device on first sight or replaces its attribute
// snapshot on subsequent enumerations. Telemetry and timestamps survive
// the replacement. An attribute snapshot carrying a different device ID
// is a programming error and is rejected.
func (r *Registry) Upsert(id int64, attrs Attributes) (*Device, error) {
	if attrs.DeviceID != 0 && attrs.DeviceID != id {
		return nil, fmt.Errorf("%w: upsert for %d carried attributes of %d", ErrIDMismatch, id, attrs.DeviceID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if dev, ok := r.devices[id]; ok {
		dev.setAttributes(attrs)
		return dev, nil
	}

	dev := newDevice(id, attrs)
	r.devices[id] = dev
	r.log.Debug("device registered", "device_id", id, "alias", attrs.Alias)
	return dev, nil
}

// ApplyTimeDelta merges event timestamps into a known device. Deltas for
// unknown devices are logged and dropped; the return value reports whether
// the delta was applied.
func (r *Registry) ApplyTimeDelta(id int64, t Times) bool {
	r.mu.RLock()
	dev, ok := r.devices[id]
	r.mu.RUnlock()
	if !ok {
		r.log.Warn("time delta for unknown device dropped", "device_id", id)
		return false
	}
	dev.applyTimes(t)
	return true
}

// ApplyStatsDelta replaces the telemetry snapshot of a known device.
// Deltas for unknown devices are logged and dropped.
func (r *Registry) ApplyStatsDelta(id int64, s Stats) bool {
	r.mu.RLock()
	dev, ok := r.devices[id]
	r.mu.RUnlock()
	if !ok {
		r.log.Warn("stats delta for unknown device dropped", "device_id", id)
		return false
	}
	dev.applyStats(s)
	return true
}

// Get returns the device with the given ID.
func (r *Registry) Get(id int64) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[id]
	return dev, ok
}

// All returns every known device, ordered by ID for stable enumeration.
func (r *Registry) All() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
