package account

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vantrack/vantrack-core/internal/cloud"
	"github.com/vantrack/vantrack-core/internal/device"
	"github.com/vantrack/vantrack-core/internal/infrastructure/config"
)

// fakeAPI scripts the cloud without any network.
type fakeAPI struct {
	mu         sync.Mutex
	authCalls  int
	fetchCalls int
	sendCalls  int

	authErr error
	devices []device.Attributes
	fetch   func(call int, cursor int64) (*cloud.Updates, error)
	send    func(deviceID int64, cmd cloud.Command) (string, error)
}

func (f *fakeAPI) Authenticate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	return f.authErr
}

func (f *fakeAPI) ListDevices(ctx context.Context) ([]device.Attributes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, nil
}

func (f *fakeAPI) FetchUpdates(ctx context.Context, cursor int64) (*cloud.Updates, error) {
	f.mu.Lock()
	f.fetchCalls++
	call := f.fetchCalls
	fetch := f.fetch
	f.mu.Unlock()
	if fetch == nil {
		return &cloud.Updates{Cursor: cursor}, nil
	}
	return fetch(call, cursor)
}

func (f *fakeAPI) SendCommand(ctx context.Context, deviceID int64, cmd cloud.Command, params map[string]string) (string, error) {
	f.mu.Lock()
	f.sendCalls++
	send := f.send
	f.mu.Unlock()
	if send == nil {
		return cloud.TokenAccepted, nil
	}
	return send(deviceID, cmd)
}

func (f *fakeAPI) counts() (auth, fetch, send int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authCalls, f.fetchCalls, f.sendCalls
}

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	timers []chan time.Time
}

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	c.timers = append(c.timers, ch)
	c.mu.Unlock()
	return ch
}

func (c *fakeClock) NewTimer(time.Duration) timer {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	c.timers = append(c.timers, ch)
	c.mu.Unlock()
	return &fakeTimer{clk: c, ch: ch}
}

type fakeTimer struct {
	clk *fakeClock
	ch  chan time.Time
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool { return true }

func (t *fakeTimer) Reset(time.Duration) bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	for _, ch := range t.clk.timers {
		if ch == t.ch {
			return true
		}
	}
	t.clk.timers = append(t.clk.timers, t.ch)
	return true
}

func (c *fakeClock) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.timers {
		select {
		case ch <- time.Now():
		default:
		}
	}
	c.timers = nil
}

func (c *fakeClock) timerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func testAccount(api CloudAPI) (*Account, *fakeClock) {
	cfg := &config.Config{
		Polling: config.PollingConfig{Interval: 15, CommandTimeout: 5},
	}
	a := New(cfg, api, nil)
	clk := &fakeClock{}
	a.clk = clk
	a.exec.clk = clk
	return a, clk
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRefreshDevices(t *testing.T) {
	api := &fakeAPI{devices: []device.Attributes{
		{DeviceID: 42, Alias: "van"},
		{DeviceID: 43, Alias: "truck"},
	}}
	a, _ := testAccount(api)

	if err := a.RefreshDevices(context.Background()); err != nil {
		t.Fatalf("RefreshDevices() error = %v", err)
	}
	if len(a.Devices()) != 2 {
		t.Fatalf("got %d devices, want 2", len(a.Devices()))
	}
	dev, ok := a.Device(42)
	if !ok || dev.Name() != "van" {
		t.Errorf("Device(42) = %v, ok = %v", dev, ok)
	}
}

func TestTickAdvancesCursorIdempotently(t *testing.T) {
	api := &fakeAPI{
		devices: []device.Attributes{{DeviceID: 42}},
		fetch: func(call int, cursor int64) (*cloud.Updates, error) {
			if call == 1 {
				if cursor != CursorNone {
					t.Errorf("first fetch cursor = %d, want %d", cursor, CursorNone)
				}
				return &cloud.Updates{
					Cursor: 1000,
					Times:  map[int64]device.Times{42: {Command: 900}},
					Stats:  map[int64]device.Stats{42: {Online: 1}},
				}, nil
			}
			// Same server cursor, no deltas: the registry must come out
			// unchanged and the changed set empty.
			return &cloud.Updates{Cursor: 1000}, nil
		},
	}
	a, _ := testAccount(api)
	if err := a.RefreshDevices(context.Background()); err != nil {
		t.Fatalf("RefreshDevices() error = %v", err)
	}

	changed, err := a.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(changed) != 1 || changed[0] != 42 {
		t.Errorf("changed = %v, want [42]", changed)
	}
	if a.Cursor() != 1000 {
		t.Errorf("Cursor() = %d, want 1000", a.Cursor())
	}

	changed, err = a.Tick(context.Background())
	if err != nil {
		t.Fatalf("second Tick() error = %v", err)
	}
	if len(changed) != 0 {
		t.Errorf("second changed = %v, want empty", changed)
	}
	if a.Cursor() != 1000 {
		t.Errorf("Cursor() = %d, want 1000", a.Cursor())
	}
}

func TestTickDoesNotAdvanceCursorOnFailure(t *testing.T) {
	api := &fakeAPI{
		fetch: func(call int, cursor int64) (*cloud.Updates, error) {
			return nil, cloud.ErrTransport
		},
	}
	a, _ := testAccount(api)

	if _, err := a.Tick(context.Background()); !errors.Is(err, cloud.ErrTransport) {
		t.Fatalf("Tick() error = %v, want ErrTransport", err)
	}
	if a.Cursor() != CursorNone {
		t.Errorf("Cursor() = %d, want unchanged sentinel", a.Cursor())
	}
}

func TestTickReauthenticatesOnce(t *testing.T) {
	api := &fakeAPI{
		fetch: func(call int, cursor int64) (*cloud.Updates, error) {
			if call == 1 {
				return nil, cloud.ErrAuthFailed
			}
			return &cloud.Updates{Cursor: 500}, nil
		},
	}
	a, _ := testAccount(api)

	if _, err := a.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	auth, fetch, _ := api.counts()
	if auth != 1 {
		t.Errorf("auth calls = %d, want 1", auth)
	}
	if fetch != 2 {
		t.Errorf("fetch calls = %d, want 2", fetch)
	}
	if a.Cursor() != 500 {
		t.Errorf("Cursor() = %d, want 500", a.Cursor())
	}
}

func TestTickReauthFailureSurfaces(t *testing.T) {
	api := &fakeAPI{
		authErr: cloud.ErrAuthFailed,
		fetch: func(call int, cursor int64) (*cloud.Updates, error) {
			return nil, cloud.ErrAuthFailed
		},
	}
	a, _ := testAccount(api)

	if _, err := a.Tick(context.Background()); !errors.Is(err, cloud.ErrAuthFailed) {
		t.Fatalf("Tick() error = %v, want ErrAuthFailed", err)
	}
	auth, fetch, _ := api.counts()
	if auth != 1 || fetch != 1 {
		t.Errorf("auth/fetch calls = %d/%d, want 1/1", auth, fetch)
	}
}

func TestTickPersistentAuthFailureRetriesOnce(t *testing.T) {
	api := &fakeAPI{
		fetch: func(call int, cursor int64) (*cloud.Updates, error) {
			return nil, cloud.ErrAuthFailed
		},
	}
	a, _ := testAccount(api)

	if _, err := a.Tick(context.Background()); !errors.Is(err, cloud.ErrAuthFailed) {
		t.Fatalf("Tick() error = %v, want ErrAuthFailed", err)
	}
	auth, fetch, _ := api.counts()
	if auth != 1 {
		t.Errorf("auth calls = %d, want exactly 1", auth)
	}
	if fetch != 2 {
		t.Errorf("fetch calls = %d, want 2", fetch)
	}
}

func TestListenersSeeAppliedState(t *testing.T) {
	api := &fakeAPI{
		fetch: func(call int, cursor int64) (*cloud.Updates, error) {
			return &cloud.Updates{
				Cursor: 100,
				Times:  map[int64]device.Times{42: {Online: 90}},
				Stats:  map[int64]device.Stats{42: {Online: 1, SpeedKmh: 40}},
			}, nil
		},
	}
	a, _ := testAccount(api)
	if _, err := a.registry.Upsert(42, device.Attributes{DeviceID: 42}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	var notified []int64
	a.Subscribe(func(changed []int64) {
		notified = changed
		// Snapshot application and cursor advance happen before the
		// notification, so the new state is already visible here.
		dev, _ := a.Device(42)
		if !dev.Online() {
			t.Error("listener observed stale snapshot")
		}
		if a.Cursor() != 100 {
			t.Errorf("listener observed cursor %d, want 100", a.Cursor())
		}
	})

	if _, err := a.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(notified) != 1 || notified[0] != 42 {
		t.Errorf("notified = %v, want [42]", notified)
	}
}

func TestEndToEnd(t *testing.T) {
	api := &fakeAPI{
		devices: []device.Attributes{{DeviceID: 42, Alias: "van"}},
		fetch: func(call int, cursor int64) (*cloud.Updates, error) {
			if call == 1 {
				if cursor != -1 {
					t.Errorf("first fetch cursor = %d, want -1", cursor)
				}
				return &cloud.Updates{
					Cursor: 2000,
					Times:  map[int64]device.Times{42: {Command: 10}},
					Stats:  map[int64]device.Stats{42: {Online: 1}},
				}, nil
			}
			if cursor != 2000 {
				t.Errorf("second fetch cursor = %d, want 2000", cursor)
			}
			return &cloud.Updates{Cursor: 2000}, nil
		},
	}
	a, _ := testAccount(api)
	ctx := context.Background()

	if err := a.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if err := a.RefreshDevices(ctx); err != nil {
		t.Fatalf("RefreshDevices() error = %v", err)
	}

	changed, err := a.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(changed) != 1 || changed[0] != 42 {
		t.Fatalf("changed = %v, want [42]", changed)
	}
	dev, _ := a.Device(42)
	if !dev.Online() {
		t.Error("device 42 should report online")
	}
	if dev.LastCommandAt() != 10 {
		t.Errorf("LastCommandAt() = %d, want 10", dev.LastCommandAt())
	}

	changed, err = a.Tick(ctx)
	if err != nil {
		t.Fatalf("second Tick() error = %v", err)
	}
	if len(changed) != 0 {
		t.Errorf("second changed = %v, want empty", changed)
	}
}

func TestRunPollNowTriggersImmediateCycle(t *testing.T) {
	fetched := make(chan struct{}, 8)
	api := &fakeAPI{
		fetch: func(call int, cursor int64) (*cloud.Updates, error) {
			fetched <- struct{}{}
			return &cloud.Updates{Cursor: int64(call)}, nil
		},
	}
	a, clk := testAccount(api)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// The loop parks on its timer; an out-of-band request must run a
	// cycle without the timer ever firing.
	waitFor(t, func() bool { return clk.timerCount() > 0 })
	a.PollNow()

	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("PollNow did not trigger a fetch cycle")
	}

	// The timer re-arms after the out-of-band cycle; firing it runs the
	// next scheduled cycle.
	waitFor(t, func() bool { return clk.timerCount() > 0 })
	clk.fire()
	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("re-armed timer did not trigger a fetch cycle")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
