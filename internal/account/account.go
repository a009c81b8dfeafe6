package account

import (
	"context"
	"sync"

	"github.com/vantrack/vantrack-core/internal/cloud"
	"github.com/vantrack/vantrack-core/internal/device"
	"github.com/vantrack/vantrack-core/internal/infrastructure/config"
)

// CursorNone is the initial change-feed cursor, meaning "no data consumed
// yet". The first fetch with it returns the full current state.
const CursorNone int64 = -1

// Logger is the minimal logging interface the account needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// CloudAPI is the slice of the cloud client the account consumes.
type CloudAPI interface {
	Authenticate(ctx context.Context) error
	ListDevices(ctx context.Context) ([]device.Attributes, error)
	FetchUpdates(ctx context.Context, cursor int64) (*cloud.Updates, error)
	SendCommand(ctx context.Context, deviceID int64, cmd cloud.Command, params map[string]string) (string, error)
}

// Listener receives the set of device IDs touched by a fetch cycle.
// Called synchronously after the cycle's snapshots and cursor advance are
// visible, so reading any listed device returns the new state.
type Listener func(changed []int64)

// Account orchestrates one cloud account: it owns the device registry,
// the change-feed cursor, the poll loop and the command executor. It is
// the only component that performs a bounded retry (a single transparent
// re-authentication during a poll cycle); every other failure surfaces to
// the caller unchanged.
type Account struct {
	cfg      *config.Config
	api      CloudAPI
	registry *device.Registry
	log      Logger
	clk      clock
	exec     *executor

	mu     sync.Mutex
	cursor int64

	lmu       sync.Mutex
	listeners []Listener

	// pollNow nudges the run loop into an immediate out-of-band cycle.
	// Buffered so triggering never blocks.
	pollNow chan struct{}
}

// New creates an account bound to the given cloud API and an empty
// registry.
func New(cfg *config.Config, api CloudAPI, log Logger) *Account {
	if log == nil {
		log = noopLogger{}
	}
	registry := device.NewRegistry(log)
	clk := clock(realClock{})
	return &Account{
		cfg:      cfg,
		api:      api,
		registry: registry,
		log:      log,
		clk:      clk,
		exec:     newExecutor(api, registry, cfg.CommandTimeout(), clk, log),
		cursor:   CursorNone,
		pollNow:  make(chan struct{}, 1),
	}
}

// Authenticate establishes the cloud session.
func (a *Account) Authenticate(ctx context.Context) error {
	return a.api.Authenticate(ctx)
}

// RefreshDevices runs the full enumeration path, the only way new device
// identities enter the registry. Attribute snapshots of already-known
// devices are replaced; their telemetry and timestamps are untouched.
func (a *Account) RefreshDevices(ctx context.Context) error {
	attrs, err := a.api.ListDevices(ctx)
	if err != nil {
		return err
	}
	for _, at := range attrs {
		if _, err := a.registry.Upsert(at.DeviceID, at); err != nil {
			return err
		}
	}
	a.log.Info("device list refreshed", "count", len(attrs))
	return nil
}

// Send relays a command to one device. With ensureComplete set, Send
// blocks until a poll cycle confirms execution or the command timeout
// elapses; a second Send for the same device during that window fails
// fast with ErrBusy.
func (a *Account) Send(ctx context.Context, deviceID int64, cmd cloud.Command, params map[string]string, ensureComplete bool) error {
	return a.exec.send(ctx, deviceID, cmd, params, ensureComplete)
}

// Subscribe registers a listener for changed-device notifications.
// Listeners run synchronously inside the poll cycle, so they should hand
// heavy work off.
func (a *Account) Subscribe(fn Listener) {
	a.lmu.Lock()
	a.listeners = append(a.listeners, fn)
	a.lmu.Unlock()
}

// Devices returns every known device, ordered by ID.
func (a *Account) Devices() []*device.Device {
	return a.registry.All()
}

// Device returns one device by ID.
func (a *Account) Device(id int64) (*device.Device, bool) {
	return a.registry.Get(id)
}

// Cursor returns the current change-feed cursor.
func (a *Account) Cursor() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor
}

// PollNow requests an immediate out-of-band fetch cycle from the run
// loop. The normal timer re-arms relative to that cycle's completion.
// Non-blocking; a request while one is already queued is a no-op.
func (a *Account) PollNow() {
	select {
	case a.pollNow <- struct{}{}:
	default:
	}
}

// Run drives the poll loop until ctx is cancelled. Each cycle's timer is
// armed after the previous cycle completes, so slow cycles never overlap.
// Cycle errors are logged and the loop keeps going; retry and backoff
// policy beyond the single in-cycle re-authentication stays with whoever
// supervises Run.
func (a *Account) Run(ctx context.Context) error {
	a.log.Info("poll loop started", "interval", a.cfg.PollInterval().String())

	t := a.clk.NewTimer(a.cfg.PollInterval())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("poll loop stopped")
			return nil
		case <-t.C():
		case <-a.pollNow:
			// The out-of-band cycle replaces this window's scheduled
			// one; retire the armed timer so it cannot also fire.
			if !t.Stop() {
				select {
				case <-t.C():
				default:
				}
			}
		}

		if _, err := a.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				a.log.Info("poll loop stopped")
				return nil
			}
			a.log.Warn("poll cycle failed", "error", err)
		}

		// Re-arm relative to cycle completion, so slow cycles never
		// overlap the next one.
		t.Reset(a.cfg.PollInterval())
	}
}
