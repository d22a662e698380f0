// Package pattern drives time-based torch sequences: strobe, SOS and the
// delayed auto-off timer. Each running sequence is a cancellable task; a new
// request of the same kind supersedes the previous one, and strobe and SOS
// exclude each other since they share the LED.
package pattern

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sweeney/torchd/internal/flash"
)

// Options configures a Scheduler. Zero values select the defaults.
type Options struct {
	Clock          Clock
	Observer       Observer
	StrobeInterval time.Duration
	SOSPattern     []time.Duration
	SOSGap         time.Duration
}

type task struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newTask() *task {
	ctx, cancel := context.WithCancel(context.Background())
	return &task{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// stop cancels the task and waits for its goroutine, including cleanup.
func (t *task) stop() {
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}

// Scheduler runs strobe, SOS and timer tasks against a Torch.
type Scheduler struct {
	torch          Torch
	clock          Clock
	observer       Observer
	strobeInterval time.Duration
	sosPattern     []time.Duration
	sosGap         time.Duration

	mu            sync.Mutex
	strobe        *task
	sos           *task
	timer         *task
	timerDeadline time.Time
	counts        Counts
}

// New creates a Scheduler.
func New(t Torch, opts Options) *Scheduler {
	s := &Scheduler{
		torch:          t,
		clock:          opts.Clock,
		observer:       opts.Observer,
		strobeInterval: opts.StrobeInterval,
		sosPattern:     opts.SOSPattern,
		sosGap:         opts.SOSGap,
	}
	if s.clock == nil {
		s.clock = RealClock()
	}
	if s.strobeInterval <= 0 {
		s.strobeInterval = DefaultStrobeInterval
	}
	if len(s.sosPattern) == 0 {
		s.sosPattern = SOSPattern
	}
	if s.sosGap <= 0 {
		s.sosGap = SOSGap
	}
	return s
}

// Strobing reports whether strobe is enabled.
func (s *Scheduler) Strobing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strobe != nil
}

// SOSActive reports whether an SOS sequence is running.
func (s *Scheduler) SOSActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sos != nil
}

// TimerDeadline returns when the pending auto-off fires, if one is pending.
func (s *Scheduler) TimerDeadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timerDeadline, s.timer != nil
}

// Counts returns pattern run counts.
func (s *Scheduler) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// StartStrobe enables strobe. A running SOS is cancelled first. Enabling an
// already running strobe is a no-op.
func (s *Scheduler) StartStrobe() {
	s.mu.Lock()
	if s.strobe != nil {
		s.mu.Unlock()
		return
	}
	sos := s.sos
	s.sos = nil
	t := newTask()
	s.strobe = t
	s.counts.StrobeRuns++
	s.mu.Unlock()

	sos.stop()
	s.notify(Change{Kind: KindStrobe, Active: true})
	go s.runStrobe(t)
}

// StopStrobe disables strobe and leaves the torch off, whatever state the
// last tick left it in.
func (s *Scheduler) StopStrobe() {
	s.mu.Lock()
	t := s.strobe
	s.strobe = nil
	s.mu.Unlock()

	if t == nil {
		s.forceOff(KindStrobe)
		return
	}
	t.stop()
}

// SendSOS starts the SOS sequence, superseding a running one and stopping
// strobe.
func (s *Scheduler) SendSOS() {
	s.mu.Lock()
	prev := s.sos
	strobe := s.strobe
	s.strobe = nil
	t := newTask()
	s.sos = t
	s.counts.SOSRuns++
	s.mu.Unlock()

	strobe.stop()
	prev.stop()
	s.notify(Change{Kind: KindSOS, Active: true})
	go s.runSOS(t)
}

// CancelSOS stops a running SOS sequence and turns the torch off.
func (s *Scheduler) CancelSOS() {
	s.mu.Lock()
	t := s.sos
	s.sos = nil
	s.mu.Unlock()
	t.stop()
}

// SetTimer schedules the torch to turn off after d, replacing any pending
// timer. Manual changes before the deadline do not affect it.
func (s *Scheduler) SetTimer(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidDuration
	}

	s.mu.Lock()
	prev := s.timer
	t := newTask()
	s.timer = t
	deadline := s.clock.Now().Add(d)
	s.timerDeadline = deadline
	s.mu.Unlock()

	prev.stop()
	s.notify(Change{Kind: KindTimer, Active: true, Deadline: deadline})
	go s.runTimer(t, d)
	return nil
}

// CancelTimer drops a pending timer without touching the torch.
func (s *Scheduler) CancelTimer() {
	s.mu.Lock()
	t := s.timer
	s.timer = nil
	s.timerDeadline = time.Time{}
	s.mu.Unlock()

	if t == nil {
		return
	}
	t.stop()
	s.notify(Change{Kind: KindTimer, Active: false})
}

// Close cancels every task. Strobe and SOS leave the torch off.
func (s *Scheduler) Close() {
	s.mu.Lock()
	strobe, sos, timer := s.strobe, s.sos, s.timer
	s.strobe, s.sos, s.timer = nil, nil, nil
	s.timerDeadline = time.Time{}
	s.mu.Unlock()

	strobe.stop()
	sos.stop()
	timer.stop()
}

func (s *Scheduler) runStrobe(t *task) {
	forceOff := true
	defer func() { s.finish(t, KindStrobe, forceOff) }()

	for {
		if _, err := s.torch.Toggle(t.ctx, flash.SourceStrobe); err != nil {
			if errors.Is(err, flash.ErrDeviceUnavailable) {
				// The failed toggle already raised the notice and left the
				// torch as it was; a second write would only repeat it.
				log.Printf("pattern: strobe stopped: %v", err)
				forceOff = false
				return
			}
		}
		if !s.wait(t.ctx, s.strobeInterval) {
			return
		}
	}
}

func (s *Scheduler) runSOS(t *task) {
	forceOff := true
	defer func() { s.finish(t, KindSOS, forceOff) }()

	for _, d := range s.sosPattern {
		if err := s.torch.Set(t.ctx, true, flash.SourceSOS); err != nil {
			logStop(KindSOS, err)
			forceOff = !errors.Is(err, flash.ErrDeviceUnavailable)
			return
		}
		if !s.wait(t.ctx, d) {
			return
		}
		if err := s.torch.Set(t.ctx, false, flash.SourceSOS); err != nil {
			logStop(KindSOS, err)
			forceOff = !errors.Is(err, flash.ErrDeviceUnavailable)
			return
		}
		if !s.wait(t.ctx, s.sosGap) {
			return
		}
	}
	forceOff = false
}

func (s *Scheduler) runTimer(t *task, d time.Duration) {
	defer close(t.done)

	if !s.wait(t.ctx, d) {
		return
	}
	if err := s.torch.Set(context.Background(), false, flash.SourceTimer); err != nil {
		log.Printf("pattern: timer turn-off: %v", err)
	}

	s.mu.Lock()
	current := s.timer == t
	if current {
		s.timer = nil
		s.timerDeadline = time.Time{}
		s.counts.TimersFired++
	}
	s.mu.Unlock()

	if current {
		s.notify(Change{Kind: KindTimer, Active: false})
	}
}

// finish runs when a strobe or SOS task exits: it turns the torch off if the
// sequence was cut short, releases the slot and reports the pattern ended.
func (s *Scheduler) finish(t *task, k Kind, forceOff bool) {
	if forceOff {
		s.forceOff(k)
	}

	s.mu.Lock()
	switch k {
	case KindStrobe:
		if s.strobe == t {
			s.strobe = nil
		}
	case KindSOS:
		if s.sos == t {
			s.sos = nil
		}
	}
	s.mu.Unlock()

	t.cancel()
	s.notify(Change{Kind: k, Active: false})
	close(t.done)
}

func (s *Scheduler) forceOff(k Kind) {
	if err := s.torch.Set(context.Background(), false, sourceFor(k)); err != nil {
		log.Printf("pattern: %s turn-off: %v", k, err)
	}
}

func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	}
}

func (s *Scheduler) notify(c Change) {
	if s.observer == nil {
		return
	}
	c.Time = s.clock.Now()
	s.observer.PatternChanged(c)
}

func logStop(k Kind, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Printf("pattern: %s stopped: %v", k, err)
}
