package device

import "strings"

// Feature identifies one remotely usable capability of a device.
type Feature uint32

// FeatureSet is a bitmask of Feature values.
type FeatureSet uint32

const (
	FeatureTracking Feature = 1 << iota
	FeatureEngineStart
	FeatureHeater
	FeatureClimate
	FeatureLock
	FeatureTrunk
	FeatureHorn
	FeatureLights
	FeatureBalance
	FeatureFuel
)

// featureKeys maps the cloud's feature-map keys to flags. Keys the cloud
// adds in later firmware revisions simply decode to nothing here.
var featureKeys = map[string]Feature{
	"tracking":  FeatureTracking,
	"eng_start": FeatureEngineStart,
	"heater":    FeatureHeater,
	"climate":   FeatureClimate,
	"lock":      FeatureLock,
	"trunk":     FeatureTrunk,
	"horn":      FeatureHorn,
	"lights":    FeatureLights,
	"balance":   FeatureBalance,
	"fuel":      FeatureFuel,
}

var featureNames = map[Feature]string{
	FeatureTracking:    "tracking",
	FeatureEngineStart: "eng_start",
	FeatureHeater:      "heater",
	FeatureClimate:     "climate",
	FeatureLock:        "lock",
	FeatureTrunk:       "trunk",
	FeatureHorn:        "horn",
	FeatureLights:      "lights",
	FeatureBalance:     "balance",
	FeatureFuel:        "fuel",
}

// DecodeFeatures converts the cloud's raw supported-feature map into a
// FeatureSet. Only known keys with truthy values contribute; unknown keys
// and falsy values (false, zero, empty) are ignored.
func DecodeFeatures(raw map[string]any) FeatureSet {
	var set FeatureSet
	for key, val := range raw {
		flag, ok := featureKeys[key]
		if !ok || !truthy(val) {
			continue
		}
		set |= FeatureSet(flag)
	}
	return set
}

// truthy interprets a decoded JSON value the way the cloud does: booleans
// literally, numbers as non-zero, strings as non-empty and not "0".
func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case string:
		return val != "" && val != "0" && !strings.EqualFold(val, "false")
	default:
		return false
	}
}

// Has reports whether the set contains the given feature.
func (s FeatureSet) Has(f Feature) bool {
	return s&FeatureSet(f) != 0
}

// String lists the contained feature names, comma separated.
func (s FeatureSet) String() string {
	if s == 0 {
		return "none"
	}
	var names []string
	for f := FeatureTracking; f <= FeatureFuel; f <<= 1 {
		if s.Has(f) {
			names = append(names, featureNames[f])
		}
	}
	return strings.Join(names, ",")
}

// StatusFlag identifies one bit in the raw device status bitfield.
type StatusFlag uint32

// StatusSet is a bitmask of StatusFlag values.
type StatusSet uint32

// Bit assignments are fixed by the cloud protocol. Bits outside the known
// range are masked off during decoding.
const (
	StatusLocked StatusFlag = 1 << iota
	StatusArmed
	StatusIgnition
	StatusEngine
	StatusDoorOpen
	StatusTrunkOpen
	StatusHoodOpen
	StatusHandbrake
	StatusValet
	StatusAlarm
)

var statusNames = map[StatusFlag]string{
	StatusLocked:    "locked",
	StatusArmed:     "armed",
	StatusIgnition:  "ignition",
	StatusEngine:    "engine",
	StatusDoorOpen:  "door_open",
	StatusTrunkOpen: "trunk_open",
	StatusHoodOpen:  "hood_open",
	StatusHandbrake: "handbrake",
	StatusValet:     "valet",
	StatusAlarm:     "alarm",
}

const statusKnownMask = StatusSet(StatusAlarm<<1 - 1)

// DecodeStatus converts the raw status bitfield into a StatusSet,
// discarding bits with no assigned meaning.
func DecodeStatus(raw int64) StatusSet {
	return StatusSet(raw) & statusKnownMask
}

// Has reports whether the set contains the given flag.
func (s StatusSet) Has(f StatusFlag) bool {
	return s&StatusSet(f) != 0
}

// String lists the contained status flag names, comma separated.
func (s StatusSet) String() string {
	if s == 0 {
		return "none"
	}
	var names []string
	for f := StatusLocked; f <= StatusAlarm; f <<= 1 {
		if s.Has(f) {
			names = append(names, statusNames[f])
		}
	}
	return strings.Join(names, ",")
}
