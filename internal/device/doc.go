// Package device holds the in-memory model of an account's vehicles: the
// per-device attribute, telemetry and timestamp snapshots, the decoders
// for the cloud's feature map and status bitfield, and the registry that
// merges change-feed deltas into that state.
//
// Snapshots are replaced wholesale rather than mutated, timestamps only
// move forward, and everything derived (feature sets, status flags, the
// online predicate) is computed from the current snapshots on read.
package device
