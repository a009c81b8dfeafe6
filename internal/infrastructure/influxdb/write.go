package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteVehicleStats writes the current numeric readings for one device.
//
// This is the primary method for relaying live telemetry from the change
// feed. The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Cloud device identifier
//   - fields: Reading name to value (e.g., "speed_kmh", "fuel_litres")
//
// Example:
//
//	client.WriteVehicleStats(123456, map[string]float64{
//	    "speed_kmh":   62.0,
//	    "fuel_litres": 41.5,
//	    "voltage":     12.8,
//	})
func (c *Client) WriteVehicleStats(deviceID int64, fields map[string]float64) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	pointFields := make(map[string]interface{}, len(fields))
	for name, value := range fields {
		pointFields[name] = value
	}

	point := write.NewPoint(
		"vehicle_stats",
		map[string]string{
			"device_id": strconv.FormatInt(deviceID, 10),
		},
		pointFields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePosition writes the current GPS fix for one device.
//
// Parameters:
//   - deviceID: Cloud device identifier
//   - latitude, longitude: Position in decimal degrees
//   - speed: Ground speed in km/h
func (c *Client) WritePosition(deviceID int64, latitude, longitude, speed float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"vehicle_position",
		map[string]string{
			"device_id": strconv.FormatInt(deviceID, 10),
		},
		map[string]interface{}{
			"latitude":  latitude,
			"longitude": longitude,
			"speed_kmh": speed,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
