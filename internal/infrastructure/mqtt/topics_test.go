package mqtt

import (
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device state", topics.DeviceState(123456), "vantrack/device/123456/state"},
		{"device command", topics.DeviceCommand(123456), "vantrack/device/123456/command"},
		{"command result", topics.DeviceCommandResult(42), "vantrack/device/42/command/result"},
		{"devices changed", topics.DevicesChanged(), "vantrack/event/devices_changed"},
		{"system status", topics.SystemStatus(), "vantrack/system/status"},
		{"all commands", topics.AllDeviceCommands(), "vantrack/device/+/command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPublish_Validation(t *testing.T) {
	// A zero-value client is disconnected; validation runs before any
	// network interaction.
	c := &Client{}

	if err := c.Publish("", []byte("x"), 1, false); err != ErrInvalidTopic {
		t.Errorf("empty topic: error = %v, want ErrInvalidTopic", err)
	}

	if err := c.Publish("vantrack/test", []byte("x"), 3, false); err != ErrInvalidQoS {
		t.Errorf("invalid QoS: error = %v, want ErrInvalidQoS", err)
	}
}

func TestBuildOnlinePayload(t *testing.T) {
	payload := buildOnlinePayload("vantrack-test")

	if !strings.Contains(payload, `"status":"online"`) {
		t.Errorf("payload %q missing online status", payload)
	}
	if !strings.Contains(payload, `"client_id":"vantrack-test"`) {
		t.Errorf("payload %q missing client_id", payload)
	}
}

func TestBuildOfflinePayload(t *testing.T) {
	payload := buildOfflinePayload("vantrack-test")

	if !strings.Contains(payload, `"status":"offline"`) {
		t.Errorf("payload %q missing offline status", payload)
	}
	if !strings.Contains(payload, `"reason":"graceful_shutdown"`) {
		t.Errorf("payload %q missing shutdown reason", payload)
	}
}
