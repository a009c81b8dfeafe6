// Package mqtt provides the MQTT bridge between VanTrack Core and the host
// automation framework.
//
// After each poll cycle the daemon publishes decoded per-device state to
// retained topics and a changed-device event; the host framework publishes
// command requests which the daemon dispatches to the cloud.
//
// # Topic Contract
//
//	vantrack/device/{id}/state           decoded state (retained)
//	vantrack/device/{id}/command         inbound command requests
//	vantrack/device/{id}/command/result  command outcomes
//	vantrack/event/devices_changed       changed device ID sets
//	vantrack/system/status               online/offline (LWT, retained)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Subscribe(mqtt.Topics{}.AllDeviceCommands(), 1, handleCommand)
//	client.PublishJSON(mqtt.Topics{}.DeviceState(id), state, 1, true)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Subscriptions are restored
// automatically after reconnects.
package mqtt
