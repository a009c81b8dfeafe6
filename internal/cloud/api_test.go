package cloud

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIListDevices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			w.Write([]byte(`{"code": 200}`))
		case "/user/devices":
			w.Write([]byte(`{
				"code": 200,
				"devices": [
					{"device_id": 42, "alias": "van", "model": "VT-500",
					 "firmware": "2.1.0", "voice": "1.3",
					 "functions": {"tracking": true, "heater": true}}
				]
			}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	// nil session exercises scoped-session operation: the call must log
	// in on its own before hitting the endpoint.
	api := NewAPI(testConfig(srv.URL), nil, nil)
	devices, err := api.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}
	if devices[0].DeviceID != 42 || devices[0].Alias != "van" {
		t.Errorf("device = %+v", devices[0])
	}
	if v, ok := devices[0].Functions["tracking"]; !ok || v != true {
		t.Error("expected tracking in the raw feature map")
	}
}

func TestAPIFetchUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			w.Write([]byte(`{"code": 200}`))
		case "/device/updates":
			if got := r.URL.Query().Get("ts"); got != "1700000000" {
				t.Errorf("cursor = %q, want 1700000000", got)
			}
			w.Write([]byte(`{
				"code": 200,
				"ts": 1700000060,
				"time": {
					"42": {"command": 1700000050, "online": 1700000059}
				},
				"stats": {
					"42": {"online": 1, "speed": 63.5, "voltage": 13.9, "status": 5},
					"garbage": {"online": 1}
				}
			}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	api := NewAPI(testConfig(srv.URL), nil, nil)
	updates, err := api.FetchUpdates(context.Background(), 1700000000)
	if err != nil {
		t.Fatalf("FetchUpdates() error = %v", err)
	}
	if updates.Cursor != 1700000060 {
		t.Errorf("Cursor = %d, want 1700000060", updates.Cursor)
	}
	times, ok := updates.Times[42]
	if !ok || times.Command != 1700000050 || times.Online != 1700000059 {
		t.Errorf("Times[42] = %+v, ok = %v", times, ok)
	}
	stats, ok := updates.Stats[42]
	if !ok || stats.SpeedKmh != 63.5 || stats.Status != 5 {
		t.Errorf("Stats[42] = %+v, ok = %v", stats, ok)
	}
	if len(updates.Stats) != 1 {
		t.Errorf("non-numeric device keys should be dropped, got %d stats entries", len(updates.Stats))
	}
}

func TestAPISendCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			w.Write([]byte(`{"code": 200}`))
		case "/device/42/command":
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if got := r.PostForm.Get("command"); got != "10" {
				t.Errorf("command = %q, want 10", got)
			}
			w.Write([]byte(`{"code": 200, "result": {"42": "sent"}}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	api := NewAPI(testConfig(srv.URL), nil, nil)
	token, err := api.SendCommand(context.Background(), 42, CommandLocate, nil)
	if err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if token != TokenAccepted {
		t.Errorf("token = %q, want %q", token, TokenAccepted)
	}
}
