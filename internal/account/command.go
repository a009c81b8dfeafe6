package account

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vantrack/vantrack-core/internal/cloud"
	"github.com/vantrack/vantrack-core/internal/device"
)

// pending is one outstanding confirmable command. done is closed by the
// poller when a fetch cycle observes a command timestamp strictly greater
// than the baseline captured at submission.
type pending struct {
	baseline int64
	done     chan struct{}
}

// executor serializes command traffic per device: at most one pending
// command per device at any moment, enforced before any network call.
//
// Confirmation piggybacks on the change feed. The cloud has no command
// status endpoint; a device that executed a command reports a new
// last-command timestamp in a later poll cycle, and that observation is
// what resolves the wait.
type executor struct {
	api      CloudAPI
	registry *device.Registry
	timeout  time.Duration
	clk      clock
	log      Logger

	mu      sync.Mutex
	pending map[int64]*pending
}

func newExecutor(api CloudAPI, registry *device.Registry, timeout time.Duration, clk clock, log Logger) *executor {
	return &executor{
		api:      api,
		registry: registry,
		timeout:  timeout,
		clk:      clk,
		log:      log,
		pending:  make(map[int64]*pending),
	}
}

// send relays one command. With ensureComplete set it suspends until a
// poll cycle confirms execution, the timeout elapses, or ctx is
// cancelled; the pending handle is cleared on every exit path so a
// failed or abandoned wait never blocks future commands to the device.
func (e *executor) send(ctx context.Context, deviceID int64, cmd cloud.Command, params map[string]string, ensureComplete bool) error {
	dev, ok := e.registry.Get(deviceID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDevice, deviceID)
	}

	// The busy check and handle registration happen atomically, before
	// any network traffic.
	e.mu.Lock()
	if _, busy := e.pending[deviceID]; busy {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrBusy, deviceID)
	}
	var p *pending
	if ensureComplete {
		p = &pending{
			baseline: dev.LastCommandAt(),
			done:     make(chan struct{}),
		}
		e.pending[deviceID] = p
	}
	e.mu.Unlock()

	token, err := e.api.SendCommand(ctx, deviceID, cmd, params)
	if err != nil {
		e.clear(deviceID, p)
		return err
	}
	if token != cloud.TokenAccepted {
		e.clear(deviceID, p)
		return fmt.Errorf("%w: device %d answered %q", ErrCommandRejected, deviceID, token)
	}

	if !ensureComplete {
		return nil
	}

	defer e.clear(deviceID, p)
	select {
	case <-p.done:
		return nil
	case <-e.clk.After(e.timeout):
		return fmt.Errorf("%w: device %d command %d", ErrCommandTimeout, deviceID, int(cmd))
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve closes every pending handle whose device now reports a command
// timestamp past its baseline. Called by the poller after each applied
// fetch cycle.
func (e *executor) resolve() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, p := range e.pending {
		dev, ok := e.registry.Get(id)
		if !ok {
			continue
		}
		if dev.LastCommandAt() > p.baseline {
			e.log.Debug("command confirmed", "device_id", id)
			close(p.done)
			delete(e.pending, id)
		}
	}
}

// clear drops the pending handle for a device, but only the one the
// caller owns. After resolve removes a handle, the slot can already be
// occupied by a newer command; deleting unconditionally would orphan that
// command's wait.
func (e *executor) clear(deviceID int64, p *pending) {
	if p == nil {
		return
	}
	e.mu.Lock()
	if e.pending[deviceID] == p {
		delete(e.pending, deviceID)
	}
	e.mu.Unlock()
}
