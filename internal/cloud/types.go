package cloud

import (
	"strconv"

	"github.com/vantrack/vantrack-core/internal/device"
)

// Command identifies a remote operation the cloud can relay to a device.
type Command int

const (
	CommandLock        Command = 1
	CommandUnlock      Command = 2
	CommandEngineStart Command = 3
	CommandEngineStop  Command = 4
	CommandHeaterOn    Command = 5
	CommandHeaterOff   Command = 6
	CommandHorn        Command = 7
	CommandLights      Command = 8
	CommandTrunk       Command = 9
	CommandLocate      Command = 10
)

// TokenAccepted is the per-device acceptance token the cloud returns when
// it has queued a command for delivery. Anything else means the command
// was not accepted.
const TokenAccepted = "sent"

// apiStatusOK is the application-level success code carried in every
// response body, independent of the HTTP status.
const apiStatusOK = 200

// apiStatusUnauthorized is the application-level code for a missing or
// expired session.
const apiStatusUnauthorized = 401

// envelope is the part every response body shares.
type envelope struct {
	Code int    `json:"code"`
	Desc string `json:"desc"`
}

type devicesResponse struct {
	envelope
	Devices []device.Attributes `json:"devices"`
}

// updatesResponse is the raw change-feed payload. Device IDs arrive as
// JSON object keys, so they are strings on the wire.
type updatesResponse struct {
	envelope
	Cursor int64                   `json:"ts"`
	Times  map[string]device.Times `json:"time"`
	Stats  map[string]device.Stats `json:"stats"`
}

type commandResponse struct {
	envelope
	// Result maps device ID (as a string) to its acceptance token.
	Result map[string]string `json:"result"`
}

// Updates is one decoded change-feed fetch: per-device deltas plus the
// cursor to hand back on the next fetch.
type Updates struct {
	Cursor int64
	Times  map[int64]device.Times
	Stats  map[int64]device.Stats
}

// decodeUpdates converts string-keyed wire maps into int64-keyed ones.
// Entries whose key is not a valid device ID are dropped.
func decodeUpdates(raw *updatesResponse) *Updates {
	u := &Updates{
		Cursor: raw.Cursor,
		Times:  make(map[int64]device.Times, len(raw.Times)),
		Stats:  make(map[int64]device.Stats, len(raw.Stats)),
	}
	for key, t := range raw.Times {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		u.Times[id] = t
	}
	for key, s := range raw.Stats {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		u.Stats[id] = s
	}
	return u
}
