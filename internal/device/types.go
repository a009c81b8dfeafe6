package device

import "sync"

// Attributes is the static-ish snapshot for a device, replaced wholesale on
// every full refresh. Functions carries the raw supported-feature map as
// reported by the cloud; decode it with DecodeFeatures.
type Attributes struct {
	DeviceID int64  `json:"device_id"`
	Alias    string `json:"alias"`
	Model    string `json:"model"`
	Firmware string `json:"firmware"`
	Voice    string `json:"voice"`

	// Functions is the supported-feature map (feature name to truthy value).
	Functions map[string]any `json:"functions"`
}

// Stats is the live telemetry snapshot for a device, replaced wholesale on
// every change-feed delta that mentions the device.
type Stats struct {
	// Online is the cloud's own online indicator (non-zero means online).
	Online int `json:"online"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SpeedKmh  float64 `json:"speed"`

	FuelLitres float64 `json:"fuel"`
	CabinTemp  float64 `json:"cabin_temp"`
	EngineTemp float64 `json:"engine_temp"`
	Voltage    float64 `json:"voltage"`

	// Balance is the SIM card balance in the account currency.
	Balance float64 `json:"balance"`

	// Status is the raw bitfield; decode it with DecodeStatus.
	Status int64 `json:"status"`
}

// Times carries the per-device event timestamps from the change feed,
// as Unix seconds. A zero value means "not reported in this delta".
type Times struct {
	// Command is when the device last executed a remote command.
	Command int64 `json:"command"`

	// Setting is when a device setting last changed.
	Setting int64 `json:"setting"`

	// Online is when the device was last seen online.
	Online int64 `json:"online"`
}

// Device is one vehicle tracked by an account.
//
// The identity is the integer device ID, immutable for the object's
// lifetime. Snapshots are replaced, never mutated in place; derived flag
// sets are decoded from the current snapshot on each read, so there is no
// invalidation bookkeeping to get wrong.
//
// All methods are safe for concurrent use.
type Device struct {
	id int64

	mu    sync.RWMutex
	attrs Attributes
	stats *Stats
	times Times
	// timesSet records that at least one time delta has been applied.
	// The online predicate requires it.
	timesSet bool
}

// newDevice creates a device from its first attribute snapshot.
func newDevice(id int64, attrs Attributes) *Device {
	return &Device{id: id, attrs: attrs}
}

// ID returns the immutable device identifier.
func (d *Device) ID() int64 {
	return d.id
}

// Attributes returns the current attribute snapshot.
func (d *Device) Attributes() Attributes {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.attrs
}

// Name returns the device alias.
func (d *Device) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.attrs.Alias
}

// Features decodes the supported-feature map from the current attribute
// snapshot. Unknown keys are ignored.
func (d *Device) Features() FeatureSet {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DecodeFeatures(d.attrs.Functions)
}

// Stats returns the latest telemetry snapshot, or false if none has been
// received yet.
func (d *Device) Stats() (Stats, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stats == nil {
		return Stats{}, false
	}
	return *d.stats, true
}

// StatusFlags decodes the raw status bitfield from the latest telemetry
// snapshot. Returns the empty set when no snapshot is present.
func (d *Device) StatusFlags() StatusSet {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stats == nil {
		return 0
	}
	return DecodeStatus(d.stats.Status)
}

// Times returns the current event timestamps and whether any time delta
// has been applied yet.
func (d *Device) Times() (Times, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.times, d.timesSet
}

// LastCommandAt returns the last command execution time (Unix seconds),
// or zero if no time delta has been applied.
func (d *Device) LastCommandAt() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.times.Command
}

// Online reports whether the device is currently reachable.
//
// True only when a telemetry snapshot and at least one time delta are both
// present and the snapshot's online indicator is set. Stale or absent data
// reads as offline regardless of why it is missing.
func (d *Device) Online() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats != nil && d.timesSet && d.stats.Online != 0
}

// setAttributes replaces the attribute snapshot. Decoded features are
// derived on read, so no explicit invalidation is needed.
func (d *Device) setAttributes(attrs Attributes) {
	d.mu.Lock()
	d.attrs = attrs
	d.mu.Unlock()
}

// applyStats replaces the telemetry snapshot.
func (d *Device) applyStats(stats Stats) {
	d.mu.Lock()
	d.stats = &stats
	d.mu.Unlock()
}

// applyTimes merges event timestamps. Each field only moves forward: a
// value less than or equal to the stored one is a no-op for that field
// specifically, so replayed or out-of-order deltas cannot rewind state.
func (d *Device) applyTimes(t Times) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timesSet = true
	if t.Command > d.times.Command {
		d.times.Command = t.Command
	}
	if t.Setting > d.times.Setting {
		d.times.Setting = t.Setting
	}
	if t.Online > d.times.Online {
		d.times.Online = t.Online
	}
}
