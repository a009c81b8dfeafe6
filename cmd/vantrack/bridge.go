package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vantrack/vantrack-core/internal/account"
	"github.com/vantrack/vantrack-core/internal/cloud"
	"github.com/vantrack/vantrack-core/internal/device"
	"github.com/vantrack/vantrack-core/internal/infrastructure/influxdb"
	"github.com/vantrack/vantrack-core/internal/infrastructure/logging"
	"github.com/vantrack/vantrack-core/internal/infrastructure/mqtt"
)

// commandRequest is the payload the host framework publishes to
// vantrack/device/{id}/command.
type commandRequest struct {
	Command        int               `json:"command"`
	Params         map[string]string `json:"params,omitempty"`
	EnsureComplete bool              `json:"ensure_complete"`
}

// commandResult is published to vantrack/device/{id}/result when a
// command finishes.
type commandResult struct {
	Command int    `json:"command"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// deviceState is the decoded per-device snapshot published after each
// poll cycle that touched the device.
type deviceState struct {
	DeviceID int64     `json:"device_id"`
	Name     string    `json:"name"`
	Model    string    `json:"model"`
	Firmware string    `json:"firmware"`
	Online   bool      `json:"online"`
	Features string    `json:"features"`
	Status   string    `json:"status"`
	Stats    *statsMsg `json:"stats,omitempty"`
}

type statsMsg struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	SpeedKmh   float64 `json:"speed_kmh"`
	FuelLitres float64 `json:"fuel_litres"`
	CabinTemp  float64 `json:"cabin_temp"`
	EngineTemp float64 `json:"engine_temp"`
	Voltage    float64 `json:"voltage"`
	Balance    float64 `json:"balance"`
}

type changedEvent struct {
	Devices []int64 `json:"devices"`
}

// bridge connects the account to the host framework: device state and
// change events flow out over MQTT and InfluxDB, command requests flow
// in over MQTT.
type bridge struct {
	ctx    context.Context
	acct   *account.Account
	mq     *mqtt.Client
	flux   *influxdb.Client
	qos    byte
	log    *logging.Logger
	topics mqtt.Topics
}

func newBridge(ctx context.Context, acct *account.Account, mq *mqtt.Client, flux *influxdb.Client, qos byte, log *logging.Logger) *bridge {
	return &bridge{
		ctx:  ctx,
		acct: acct,
		mq:   mq,
		flux: flux,
		qos:  qos,
		log:  log,
	}
}

// start subscribes to the framework's command topic and hooks the
// account's change notifications.
func (b *bridge) start() error {
	b.acct.Subscribe(b.onDevicesChanged)

	if b.mq == nil {
		return nil
	}
	if err := b.mq.Subscribe(b.topics.AllDeviceCommands(), b.qos, b.onCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	return nil
}

// onDevicesChanged fans one fetch cycle's changed set out to the sinks.
// Runs synchronously inside the poll cycle; publishes are asynchronous
// underneath, so this stays cheap.
func (b *bridge) onDevicesChanged(changed []int64) {
	if b.mq != nil {
		if err := b.mq.PublishJSON(b.topics.DevicesChanged(), changedEvent{Devices: changed}, b.qos, false); err != nil {
			b.log.Warn("publishing change event failed", "error", err)
		}
	}

	for _, id := range changed {
		dev, ok := b.acct.Device(id)
		if !ok {
			continue
		}
		b.publishState(dev)
		b.recordStats(dev)
	}
}

func (b *bridge) publishState(dev *device.Device) {
	if b.mq == nil {
		return
	}

	attrs := dev.Attributes()
	state := deviceState{
		DeviceID: dev.ID(),
		Name:     attrs.Alias,
		Model:    attrs.Model,
		Firmware: attrs.Firmware,
		Online:   dev.Online(),
		Features: dev.Features().String(),
		Status:   dev.StatusFlags().String(),
	}
	if stats, ok := dev.Stats(); ok {
		state.Stats = &statsMsg{
			Latitude:   stats.Latitude,
			Longitude:  stats.Longitude,
			SpeedKmh:   stats.SpeedKmh,
			FuelLitres: stats.FuelLitres,
			CabinTemp:  stats.CabinTemp,
			EngineTemp: stats.EngineTemp,
			Voltage:    stats.Voltage,
			Balance:    stats.Balance,
		}
	}

	// Retained, so a framework restart picks up the last known state.
	if err := b.mq.PublishJSON(b.topics.DeviceState(dev.ID()), state, b.qos, true); err != nil {
		b.log.Warn("publishing device state failed", "device_id", dev.ID(), "error", err)
	}
}

func (b *bridge) recordStats(dev *device.Device) {
	if b.flux == nil {
		return
	}
	stats, ok := dev.Stats()
	if !ok {
		return
	}

	b.flux.WritePosition(dev.ID(), stats.Latitude, stats.Longitude, stats.SpeedKmh)
	b.flux.WriteVehicleStats(dev.ID(), map[string]float64{
		"fuel_litres": stats.FuelLitres,
		"cabin_temp":  stats.CabinTemp,
		"engine_temp": stats.EngineTemp,
		"voltage":     stats.Voltage,
		"balance":     stats.Balance,
	})
}

// onCommand handles one command request from the host framework. The
// send itself runs on its own goroutine: a confirmable command can block
// for the full confirmation window, and the MQTT receive path must not.
func (b *bridge) onCommand(topic string, payload []byte) error {
	deviceID, err := deviceIDFromTopic(topic)
	if err != nil {
		return err
	}
	// Only exact command topics are acted on; anything else that slips
	// through the subscription filter is dropped here.
	if topic != b.topics.DeviceCommand(deviceID) {
		return fmt.Errorf("unexpected command topic %q", topic)
	}

	var req commandRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decoding command request: %w", err)
	}

	go func() {
		err := b.acct.Send(b.ctx, deviceID, cloud.Command(req.Command), req.Params, req.EnsureComplete)
		b.publishResult(deviceID, req, err)
		if err != nil {
			b.log.Warn("command failed", "device_id", deviceID, "command", req.Command, "error", err)
		}
	}()
	return nil
}

func (b *bridge) publishResult(deviceID int64, req commandRequest, err error) {
	if b.mq == nil {
		return
	}
	result := commandResult{Command: req.Command}
	switch {
	case err == nil && req.EnsureComplete:
		result.Status = "completed"
	case err == nil:
		result.Status = "sent"
	default:
		result.Status = "failed"
		result.Error = resultError(err)
	}

	if perr := b.mq.PublishJSON(b.topics.DeviceCommandResult(deviceID), result, b.qos, false); perr != nil {
		b.log.Warn("publishing command result failed", "device_id", deviceID, "error", perr)
	}
}

// resultError maps the error taxonomy onto stable wire strings so the
// framework does not parse prose.
func resultError(err error) string {
	switch {
	case errors.Is(err, account.ErrBusy):
		return "busy"
	case errors.Is(err, account.ErrCommandRejected):
		return "rejected"
	case errors.Is(err, account.ErrCommandTimeout):
		return "timeout"
	case errors.Is(err, account.ErrUnknownDevice):
		return "unknown_device"
	case errors.Is(err, cloud.ErrAuthFailed):
		return "auth_failed"
	default:
		return "transport"
	}
}

// deviceIDFromTopic extracts the device ID from a per-device topic like
// vantrack/device/123456/command.
func deviceIDFromTopic(topic string) (int64, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return 0, fmt.Errorf("malformed device topic %q", topic)
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed device id in topic %q: %w", topic, err)
	}
	return id, nil
}
