// Package app binds the flash controller and pattern scheduler into the
// single screen every front end drives: the web page, the terminal UI and
// the MQTT command topic.
package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/pattern"
	"github.com/sweeney/torchd/internal/status"
)

// ErrInvalidDuration is returned by OnSetTimer for non-positive or overlong
// durations.
var ErrInvalidDuration = pattern.ErrInvalidDuration

// MaxTimerMs is the longest timer OnSetTimer accepts: the largest
// millisecond count a time.Duration can hold.
const MaxTimerMs = math.MaxInt64 / int64(time.Millisecond)

// commandTimeout bounds how long a front end waits for the torch.
const commandTimeout = 2 * time.Second

// Screen is the control surface: four actions and two observables.
type Screen interface {
	OnToggleFlash(on bool) error
	OnToggleStrobe(on bool) error
	OnSendSOS() error
	OnSetTimer(durationMs int64) error
	IsFlashOn() bool
	IsStrobeOn() bool
}

// App implements Screen on top of a flash controller and pattern scheduler.
type App struct {
	flash   *flash.Controller
	sched   *pattern.Scheduler
	tracker *status.Tracker
}

var _ Screen = (*App)(nil)

// New creates an App. The tracker supplies the parts of the snapshot that
// only events carry (last change, notices, connectivity, config).
func New(fc *flash.Controller, sched *pattern.Scheduler, tracker *status.Tracker) *App {
	return &App{flash: fc, sched: sched, tracker: tracker}
}

// OnToggleFlash sets the torch to on.
func (a *App) OnToggleFlash(on bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return a.flash.Set(ctx, on, flash.SourceManual)
}

// OnToggleStrobe starts or stops strobe. Without a device the first strobe
// tick emits the notice and the strobe ends by itself.
func (a *App) OnToggleStrobe(on bool) error {
	if on {
		a.sched.StartStrobe()
	} else {
		a.sched.StopStrobe()
	}
	return nil
}

// OnSendSOS starts one SOS sequence.
func (a *App) OnSendSOS() error {
	a.sched.SendSOS()
	return nil
}

// OnSetTimer turns the torch off after durationMs, replacing any pending
// timer. Durations above MaxTimerMs are rejected with ErrInvalidDuration.
func (a *App) OnSetTimer(durationMs int64) error {
	if durationMs > MaxTimerMs {
		return fmt.Errorf("%w: %dms exceeds %dms", ErrInvalidDuration, durationMs, MaxTimerMs)
	}
	if err := a.sched.SetTimer(time.Duration(durationMs) * time.Millisecond); err != nil {
		return err
	}
	log.Printf("app: torch off in %dms", durationMs)
	return nil
}

// IsFlashOn reports the torch state.
func (a *App) IsFlashOn() bool {
	return a.flash.State()
}

// IsStrobeOn reports whether strobe is enabled.
func (a *App) IsStrobeOn() bool {
	return a.sched.Strobing()
}

// ToggleFlash inverts the torch and returns the new state.
func (a *App) ToggleFlash() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return a.flash.Toggle(ctx, flash.SourceManual)
}

// CancelTimer drops the pending auto-off.
func (a *App) CancelTimer() {
	a.sched.CancelTimer()
}

// CancelSOS stops a running SOS sequence.
func (a *App) CancelSOS() {
	a.sched.CancelSOS()
}

// Snapshot returns the tracker snapshot with torch and pattern state read
// directly from their owners, so a reply to a control request already
// reflects it. Event delivery to the tracker is asynchronous.
func (a *App) Snapshot() status.Snapshot {
	a.tracker.UpdateCounts(a.flash.Counts(), a.sched.Counts())
	snap := a.tracker.Snapshot()
	snap.FlashOn = a.flash.State()
	snap.Strobing = a.sched.Strobing()
	snap.SOSActive = a.sched.SOSActive()
	snap.TimerDeadline = time.Time{}
	if d, ok := a.sched.TimerDeadline(); ok {
		snap.TimerDeadline = d
	}
	return snap
}

// Shutdown stops every pattern, turns the torch off and stops the flash
// controller.
func (a *App) Shutdown() error {
	a.sched.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	err := a.flash.Set(ctx, false, flash.SourceShutdown)
	a.flash.Close()
	return err
}
