package account

import (
	"context"
	"errors"
	"sort"

	"github.com/vantrack/vantrack-core/internal/cloud"
)

// Tick performs one fetch cycle and returns the IDs of devices whose
// state changed. An expired session gets exactly one transparent
// re-authentication followed by a retry of the fetch; any further failure
// surfaces to the caller.
func (a *Account) Tick(ctx context.Context) ([]int64, error) {
	changed, err := a.fetchCycle(ctx)
	if err == nil || !errors.Is(err, cloud.ErrAuthFailed) {
		return changed, err
	}

	a.log.Info("session expired, re-authenticating")
	if aerr := a.api.Authenticate(ctx); aerr != nil {
		return nil, aerr
	}
	return a.fetchCycle(ctx)
}

// fetchCycle pulls the change feed once and merges it into the registry.
//
// Ordering inside the cycle is fixed: deltas are applied first, then the
// cursor advances, then listeners see the changed-ID set. A listener
// reading a listed device therefore always observes the new snapshot, and
// a crash between apply and advance only causes harmless re-delivery of
// the same window.
func (a *Account) fetchCycle(ctx context.Context) ([]int64, error) {
	a.mu.Lock()
	cursor := a.cursor
	a.mu.Unlock()

	updates, err := a.api.FetchUpdates(ctx, cursor)
	if err != nil {
		return nil, err
	}

	touched := make(map[int64]struct{})
	for id, times := range updates.Times {
		if a.registry.ApplyTimeDelta(id, times) {
			touched[id] = struct{}{}
		}
	}
	for id, stats := range updates.Stats {
		if a.registry.ApplyStatsDelta(id, stats) {
			touched[id] = struct{}{}
		}
	}

	// The cursor advances even on an empty payload; the server has
	// still vouched for the window up to its timestamp.
	a.mu.Lock()
	if updates.Cursor > a.cursor {
		a.cursor = updates.Cursor
	}
	a.mu.Unlock()

	a.exec.resolve()

	changed := make([]int64, 0, len(touched))
	for id := range touched {
		changed = append(changed, id)
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i] < changed[j] })

	if len(changed) > 0 {
		a.log.Debug("fetch cycle applied", "changed", len(changed), "cursor", updates.Cursor)
		a.notify(changed)
	}
	return changed, nil
}

func (a *Account) notify(changed []int64) {
	a.lmu.Lock()
	listeners := make([]Listener, len(a.listeners))
	copy(listeners, a.listeners)
	a.lmu.Unlock()

	for _, fn := range listeners {
		fn(changed)
	}
}
