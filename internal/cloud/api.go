package cloud

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vantrack/vantrack-core/internal/device"
	"github.com/vantrack/vantrack-core/internal/infrastructure/config"
)

// API exposes the cloud operations against either a long-lived session or
// per-call scoped ones.
//
// With a session supplied, the caller owns its lifecycle: authenticate
// once, reuse across calls, re-authenticate on ErrAuthFailed. With a nil
// session, every operation logs in, runs and tears the session down
// again, which suits one-shot tooling.
type API struct {
	cfg  *config.Config
	sess *Session
	log  Logger
}

// NewAPI creates the operation surface. sess may be nil for scoped-session
// operation.
func NewAPI(cfg *config.Config, sess *Session, log Logger) *API {
	if log == nil {
		log = noopLogger{}
	}
	return &API{cfg: cfg, sess: sess, log: log}
}

// Authenticate logs the underlying session in. It is a no-op concern for
// scoped operation, where every call authenticates on its own.
func (a *API) Authenticate(ctx context.Context) error {
	if a.sess == nil {
		return nil
	}
	return a.sess.Authenticate(ctx)
}

// session returns the session to run one operation on, plus a release
// function to call when done.
func (a *API) session(ctx context.Context) (*Session, func(), error) {
	if a.sess != nil {
		return a.sess, func() {}, nil
	}

	scoped, err := NewSession(a.cfg, a.log)
	if err != nil {
		return nil, nil, err
	}
	if err := scoped.Authenticate(ctx); err != nil {
		scoped.Close()
		return nil, nil, err
	}
	return scoped, scoped.Close, nil
}

// ListDevices enumerates every device on the account, attributes included.
func (a *API) ListDevices(ctx context.Context) ([]device.Attributes, error) {
	sess, release, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var resp devicesResponse
	if err := sess.do(ctx, http.MethodGet, "/user/devices", nil, nil, &resp); err != nil {
		return nil, err
	}

	a.log.Debug("devices enumerated", "count", len(resp.Devices))
	return resp.Devices, nil
}

// FetchUpdates pulls the change feed from the given cursor. A zero cursor
// asks for the full current state; the returned cursor goes into the next
// fetch. Passing an unchanged cursor back is safe because deltas merge
// idempotently on the registry side.
func (a *API) FetchUpdates(ctx context.Context, cursor int64) (*Updates, error) {
	sess, release, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	query := url.Values{}
	query.Set("ts", strconv.FormatInt(cursor, 10))

	var resp updatesResponse
	if err := sess.do(ctx, http.MethodGet, "/device/updates", query, nil, &resp); err != nil {
		return nil, err
	}

	return decodeUpdates(&resp), nil
}

// SendCommand relays a command to one device and returns the per-device
// acceptance token. Comparing the token against TokenAccepted is the
// caller's business; here a missing token is already a transport fault.
func (a *API) SendCommand(ctx context.Context, deviceID int64, cmd Command, params map[string]string) (string, error) {
	sess, release, err := a.session(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	form := url.Values{}
	form.Set("command", strconv.Itoa(int(cmd)))
	for key, val := range params {
		form.Set(key, val)
	}

	path := fmt.Sprintf("/device/%d/command", deviceID)

	var resp commandResponse
	if err := sess.do(ctx, http.MethodPost, path, nil, form, &resp); err != nil {
		return "", err
	}

	token, ok := resp.Result[strconv.FormatInt(deviceID, 10)]
	if !ok {
		return "", fmt.Errorf("%w: command response missing device %d", ErrTransport, deviceID)
	}

	a.log.Debug("command relayed", "device_id", deviceID, "command", int(cmd), "token", token)
	return token, nil
}
