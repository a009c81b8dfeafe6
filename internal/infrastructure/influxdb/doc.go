// Package influxdb provides an optional live-stats sink for VanTrack Core.
//
// After each poll cycle the daemon forwards the current readings of every
// changed device (speed, fuel, voltage, temperatures, position) to InfluxDB
// as batched, non-blocking writes. The sink is an outbound relay only:
// VanTrack never queries the data back, and running without the sink loses
// nothing but the external dashboards.
//
// # Usage
//
//	sink, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without the sink
//	}
//	defer sink.Close()
//
//	sink.WriteVehicleStats(deviceID, fields)
//
// # Error Handling
//
// Writes are asynchronous; failures are delivered via SetOnError rather
// than returned from write methods.
package influxdb
