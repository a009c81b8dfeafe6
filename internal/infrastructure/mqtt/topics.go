package mqtt

import "fmt"

// Topic prefixes for the VanTrack MQTT contract with the host framework.
//
// Device topics use the scheme: vantrack/device/{device_id}/{suffix}
const (
	// TopicPrefixDevice is the base for per-device topics.
	TopicPrefixDevice = "vantrack/device"

	// TopicPrefixEvent is the base for account-wide event topics.
	TopicPrefixEvent = "vantrack/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "vantrack/system"
)

// Topics provides builders for VanTrack MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState(123456)
//	// Returns: "vantrack/device/123456/state"
type Topics struct{}

// DeviceState returns the topic for decoded device state published after
// each poll cycle. Retained, so new subscribers see the last known state.
//
// Example: vantrack/device/123456/state
func (Topics) DeviceState(deviceID int64) string {
	return fmt.Sprintf("%s/%d/state", TopicPrefixDevice, deviceID)
}

// DeviceCommand returns the topic the host framework publishes command
// requests to.
//
// Example: vantrack/device/123456/command
func (Topics) DeviceCommand(deviceID int64) string {
	return fmt.Sprintf("%s/%d/command", TopicPrefixDevice, deviceID)
}

// DeviceCommandResult returns the topic for command outcome notifications.
//
// Example: vantrack/device/123456/command/result
func (Topics) DeviceCommandResult(deviceID int64) string {
	return fmt.Sprintf("%s/%d/command/result", TopicPrefixDevice, deviceID)
}

// DevicesChanged returns the topic for the changed-device-ID set published
// after each fetch cycle that touched at least one device.
//
// Example: vantrack/event/devices_changed
func (Topics) DevicesChanged() string {
	return fmt.Sprintf("%s/devices_changed", TopicPrefixEvent)
}

// SystemStatus returns the system status topic used for LWT and
// online/offline announcements.
//
// Example: vantrack/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceCommands returns a pattern matching command requests for any device.
//
// Pattern: vantrack/device/+/command
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/+/command", TopicPrefixDevice)
}
