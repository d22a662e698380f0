package mqtt

import (
	"errors"
	"testing"
)

type recordingControls struct {
	calls []string
	err   error
}

func (r *recordingControls) OnToggleFlash(on bool) error {
	r.calls = append(r.calls, map[bool]string{true: "flash:on", false: "flash:off"}[on])
	return r.err
}

func (r *recordingControls) OnToggleStrobe(on bool) error {
	r.calls = append(r.calls, map[bool]string{true: "strobe:on", false: "strobe:off"}[on])
	return r.err
}

func (r *recordingControls) OnSendSOS() error {
	r.calls = append(r.calls, "sos")
	return r.err
}

func (r *recordingControls) OnSetTimer(ms int64) error {
	r.calls = append(r.calls, "timer")
	return r.err
}

func TestParseCommandValid(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{`{"action":"flash","on":true}`, "flash:on"},
		{`{"action":"flash","on":false}`, "flash:off"},
		{`{"action":"strobe","on":true}`, "strobe:on"},
		{`{"action":"strobe","on":false}`, "strobe:off"},
		{`{"action":"sos"}`, "sos"},
		{`{"action":"timer","duration_ms":5000}`, "timer"},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			ctl := &recordingControls{}
			if err := Dispatch(ctl, cmd); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if len(ctl.calls) != 1 || ctl.calls[0] != tt.want {
				t.Errorf("calls: got %v, want [%s]", ctl.calls, tt.want)
			}
		})
	}
}

func TestParseCommandTimerDuration(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"action":"timer","duration_ms":10000}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.DurationMs != 10000 {
		t.Errorf("DurationMs: got %d, want 10000", cmd.DurationMs)
	}
}

func TestParseCommandInvalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `flash on`},
		{"missing action", `{"on":true}`},
		{"unknown action", `{"action":"disco"}`},
		{"flash without on", `{"action":"flash"}`},
		{"strobe without on", `{"action":"strobe"}`},
		{"timer without duration", `{"action":"timer"}`},
		{"timer zero", `{"action":"timer","duration_ms":0}`},
		{"timer negative", `{"action":"timer","duration_ms":-5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand([]byte(tt.payload))
			if !errors.Is(err, ErrBadCommand) {
				t.Errorf("expected ErrBadCommand, got %v", err)
			}
		})
	}
}

func TestDispatchPropagatesError(t *testing.T) {
	want := errors.New("no flash")
	ctl := &recordingControls{err: want}

	cmd, _ := ParseCommand([]byte(`{"action":"sos"}`))
	if err := Dispatch(ctl, cmd); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	if err := Dispatch(&recordingControls{}, Command{Action: "disco"}); !errors.Is(err, ErrBadCommand) {
		t.Errorf("expected ErrBadCommand, got %v", err)
	}
}
