package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Command actions accepted on TopicCommand.
const (
	ActionFlash  = "flash"
	ActionStrobe = "strobe"
	ActionSOS    = "sos"
	ActionTimer  = "timer"
)

// ErrBadCommand is returned for malformed or incomplete commands.
var ErrBadCommand = errors.New("mqtt: bad command")

// Command is a remote control request, e.g.
//
//	{"action":"flash","on":true}
//	{"action":"strobe","on":false}
//	{"action":"sos"}
//	{"action":"timer","duration_ms":5000}
type Command struct {
	Action     string `json:"action"`
	On         *bool  `json:"on,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// Controls is the set of screen actions a command can invoke.
type Controls interface {
	OnToggleFlash(on bool) error
	OnToggleStrobe(on bool) error
	OnSendSOS() error
	OnSetTimer(durationMs int64) error
}

// ParseCommand decodes and validates a command payload.
func ParseCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	switch c.Action {
	case ActionFlash, ActionStrobe:
		if c.On == nil {
			return Command{}, fmt.Errorf("%w: %s requires \"on\"", ErrBadCommand, c.Action)
		}
	case ActionSOS:
	case ActionTimer:
		if c.DurationMs <= 0 {
			return Command{}, fmt.Errorf("%w: timer requires positive \"duration_ms\"", ErrBadCommand)
		}
	case "":
		return Command{}, fmt.Errorf("%w: missing action", ErrBadCommand)
	default:
		return Command{}, fmt.Errorf("%w: unknown action %q", ErrBadCommand, c.Action)
	}
	return c, nil
}

// Dispatch invokes the control matching cmd. cmd must come from ParseCommand.
func Dispatch(ctl Controls, cmd Command) error {
	switch cmd.Action {
	case ActionFlash:
		return ctl.OnToggleFlash(*cmd.On)
	case ActionStrobe:
		return ctl.OnToggleStrobe(*cmd.On)
	case ActionSOS:
		return ctl.OnSendSOS()
	case ActionTimer:
		return ctl.OnSetTimer(cmd.DurationMs)
	}
	return fmt.Errorf("%w: unknown action %q", ErrBadCommand, cmd.Action)
}
