package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sweeney/torchd/internal/app"
	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/pattern"
	"github.com/sweeney/torchd/internal/status"
	"github.com/sweeney/torchd/internal/torch"
)

type fakeControls struct {
	mu    sync.Mutex
	calls []string
	err   error
	snap  status.Snapshot
}

func (f *fakeControls) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeControls) OnToggleFlash(on bool) error {
	return f.record(fmt.Sprintf("flash:%v", on))
}

func (f *fakeControls) OnToggleStrobe(on bool) error {
	return f.record(fmt.Sprintf("strobe:%v", on))
}

func (f *fakeControls) OnSendSOS() error {
	return f.record("sos")
}

func (f *fakeControls) OnSetTimer(ms int64) error {
	err := f.record(fmt.Sprintf("timer:%d", ms))
	if ms <= 0 {
		return pattern.ErrInvalidDuration
	}
	return err
}

func (f *fakeControls) Snapshot() status.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeControls) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *fakeControls) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctl := &fakeControls{snap: status.Snapshot{
		StartTime: start,
		Now:       start.Add(90 * time.Second),
		DeviceID:  "led0",
		HasDevice: true,
		Config: status.Config{
			Platform:     "sysfs",
			StrobeMs:     300,
			SensorPollMs: 200,
			HeartbeatMs:  900000,
			Broker:       "tcp://192.168.1.200:1883",
			HTTPPort:     ":80",
		},
	}}
	srv := New(":0", ctl, opts)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, ctl
}

func postJSON(t *testing.T, target, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(target, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", target, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestJSONEndpoint(t *testing.T) {
	ts, ctl := newTestServer(t, Options{})
	ctl.snap.FlashOn = true
	ctl.snap.MQTTConnected = true
	ctl.snap.Counts.Torch = flash.Counts{On: 5, Off: 2}

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Torch != "ON" {
		t.Errorf("Torch: got %q, want ON", sj.Status.Torch)
	}
	if !sj.Status.Ready {
		t.Error("expected Ready=true")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.TorchOn != 5 {
		t.Errorf("Counts.TorchOn: got %d, want 5", sj.Status.Counts.TorchOn)
	}
	if sj.Status.UptimeSeconds != 90 {
		t.Errorf("UptimeSeconds: got %d, want 90", sj.Status.UptimeSeconds)
	}
}

func TestIndexHTML(t *testing.T) {
	ts, ctl := newTestServer(t, Options{})
	ctl.snap.Strobing = true
	ctl.snap.LastNotice = &flash.Notice{Message: flash.NoticeAccessFailed}

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != 200 {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s Content-Type: got %q", path, ct)
		}
		html := string(body)
		for _, want := range []string{
			"<title>Torch</title>",
			`action="/api/flash"`,
			`action="/api/strobe"`,
			`action="/api/sos"`,
			`value="5000"`, `value="10000"`, `value="30000"`,
			"Strobe off",
			flash.NoticeAccessFailed,
			"1m 30s",
		} {
			if !strings.Contains(html, want) {
				t.Errorf("%s: missing %q", path, want)
			}
		}
	}
}

func TestIndexNoDevice(t *testing.T) {
	ts, ctl := newTestServer(t, Options{})
	ctl.snap.HasDevice = false

	resp, _ := http.Get(ts.URL + "/")
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), flash.NoticeNoFlash) {
		t.Error("expected no-flash notice on page")
	}
}

func TestUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestControlEndpoints(t *testing.T) {
	tests := []struct {
		path string
		body string
		want string
	}{
		{"/api/flash", `{"on":true}`, "flash:true"},
		{"/api/flash", `{"on":false}`, "flash:false"},
		{"/api/strobe", `{"on":true}`, "strobe:true"},
		{"/api/sos", ``, "sos"},
		{"/api/timer", `{"duration_ms":5000}`, "timer:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.path+tt.body, func(t *testing.T) {
			ts, ctl := newTestServer(t, Options{})
			resp := postJSON(t, ts.URL+tt.path, tt.body)

			if resp.StatusCode != 200 {
				t.Errorf("status: got %d, want 200", resp.StatusCode)
			}
			calls := ctl.Calls()
			if len(calls) != 1 || calls[0] != tt.want {
				t.Errorf("calls: got %v, want [%s]", calls, tt.want)
			}
			var sj status.StatusJSON
			if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
				t.Errorf("expected status JSON in response: %v", err)
			}
		})
	}
}

func TestControlMethodNotAllowed(t *testing.T) {
	ts, ctl := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/api/sos")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
	if len(ctl.Calls()) != 0 {
		t.Errorf("GET should not trigger SOS, got %v", ctl.Calls())
	}
}

func TestControlBadRequests(t *testing.T) {
	tests := []struct {
		path string
		body string
	}{
		{"/api/flash", `{}`},
		{"/api/flash", `{"on":`},
		{"/api/strobe", `{"on":"maybe"}`},
		{"/api/timer", `{"duration_ms":0}`},
		{"/api/timer", `{"duration_ms":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.path+tt.body, func(t *testing.T) {
			ts, _ := newTestServer(t, Options{})
			resp := postJSON(t, ts.URL+tt.path, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestControlDeviceUnavailable(t *testing.T) {
	ts, ctl := newTestServer(t, Options{})
	ctl.err = fmt.Errorf("%w: EBUSY", flash.ErrDeviceUnavailable)

	resp := postJSON(t, ts.URL+"/api/flash", `{"on":true}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if !strings.Contains(body["error"], "device unavailable") {
		t.Errorf("error body: got %v", body)
	}
}

func TestControlUnexpectedError(t *testing.T) {
	ts, ctl := newTestServer(t, Options{})
	ctl.err = errors.New("boom")

	resp := postJSON(t, ts.URL+"/api/sos", ``)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", resp.StatusCode)
	}
}

func TestFormPostRedirects(t *testing.T) {
	ts, ctl := newTestServer(t, Options{})
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.PostForm(ts.URL+"/api/timer", url.Values{"duration_ms": {"10000"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("status: got %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Errorf("Location: got %q, want /", loc)
	}
	if calls := ctl.Calls(); len(calls) != 1 || calls[0] != "timer:10000" {
		t.Errorf("calls: got %v", calls)
	}
}

func TestContentTypeWithCharset(t *testing.T) {
	ts, ctl := newTestServer(t, Options{})

	resp, err := http.Post(ts.URL+"/api/flash", "application/json; charset=utf-8",
		strings.NewReader(`{"on":true}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("json status: got %d, want 200", resp.StatusCode)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err = client.Post(ts.URL+"/api/timer", "application/x-www-form-urlencoded; charset=UTF-8",
		strings.NewReader(url.Values{"duration_ms": {"5000"}}.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("form status: got %d, want 303", resp.StatusCode)
	}

	want := []string{"flash:true", "timer:5000"}
	if calls := ctl.Calls(); fmt.Sprint(calls) != fmt.Sprint(want) {
		t.Errorf("calls: got %v, want %v", calls, want)
	}
}

func TestTimerOverflowRejected(t *testing.T) {
	fc := flash.New(torch.NewFakePlatform("led0"), flash.Options{})
	sched := pattern.New(fc, pattern.Options{})
	a := app.New(fc, sched, status.NewTracker(time.Now(), status.Config{}))
	t.Cleanup(func() { a.Shutdown() })

	ts := httptest.NewServer(New(":0", a, Options{}).httpServer.Handler)
	t.Cleanup(ts.Close)

	if resp := postJSON(t, ts.URL+"/api/flash", `{"on":true}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("flash on: got %d, want 200", resp.StatusCode)
	}

	// 18446744073710ms is just past what a time.Duration can hold.
	resp := postJSON(t, ts.URL+"/api/timer", `{"duration_ms":18446744073710}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}

	time.Sleep(20 * time.Millisecond)
	if !a.IsFlashOn() {
		t.Error("torch went off after a rejected timer")
	}
	if snap := a.Snapshot(); !snap.TimerDeadline.IsZero() {
		t.Errorf("timer armed: deadline %v", snap.TimerDeadline)
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	ts, ctl := newTestServer(t, Options{AuthUser: "admin", AuthHash: string(hash)})

	do := func(user, pass string) int {
		req, _ := http.NewRequest("POST", ts.URL+"/api/sos", nil)
		if user != "" {
			req.SetBasicAuth(user, pass)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := do("", ""); code != http.StatusUnauthorized {
		t.Errorf("no auth: got %d, want 401", code)
	}
	if code := do("admin", "wrong"); code != http.StatusUnauthorized {
		t.Errorf("bad password: got %d, want 401", code)
	}
	if code := do("root", "s3cret"); code != http.StatusUnauthorized {
		t.Errorf("bad user: got %d, want 401", code)
	}
	if len(ctl.Calls()) != 0 {
		t.Fatalf("unauthorized requests reached controls: %v", ctl.Calls())
	}
	if code := do("admin", "s3cret"); code != http.StatusOK {
		t.Errorf("good auth: got %d, want 200", code)
	}

	// Status page stays public.
	resp, _ := http.Get(ts.URL + "/index.json")
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("index.json with auth enabled: got %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, Options{Metrics: true})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "torchd_torch_on") {
		t.Error("expected torchd metrics in output")
	}
}

func TestMetricsDisabled(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, _ := http.Get(ts.URL + "/metrics")
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}
