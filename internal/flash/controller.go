// Package flash owns the torch state. A single command loop serializes every
// torch mutation; strobe, SOS, timers and the shake trigger send commands
// instead of touching the state directly.
package flash

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/torchd/internal/torch"
)

// Options configures a Controller. All fields are optional.
type Options struct {
	Notifier Notifier
	Observer Observer
	Now      func() time.Time
}

type command struct {
	on     bool
	toggle bool
	source Source
	reply  chan result
}

type result struct {
	on  bool
	err error
}

// Controller switches the torch on the flash-capable device discovered at
// construction time.
type Controller struct {
	platform  torch.Platform
	device    torch.DeviceID
	hasDevice bool
	notifier  Notifier
	observer  Observer
	now       func() time.Time

	cmdCh     chan command
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// written only by the command loop
	mu     sync.RWMutex
	on     bool
	counts Counts
}

// New enumerates the platform's devices, picks the first flash-capable one
// and starts the command loop. A missing device is not an error: every
// later command reports ErrDeviceUnavailable instead.
func New(p torch.Platform, opts Options) *Controller {
	c := &Controller{
		platform: p,
		notifier: opts.Notifier,
		observer: opts.Observer,
		now:      opts.Now,
		cmdCh:    make(chan command),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if c.now == nil {
		c.now = time.Now
	}

	id, err := torch.FindFlash(p)
	switch {
	case err == nil:
		c.device = id
		c.hasDevice = true
		log.Printf("flash: using device %s", id)
	case errors.Is(err, torch.ErrNoFlash):
		log.Printf("flash: no flash-capable device found")
	default:
		log.Printf("flash: device discovery failed: %v", err)
	}

	go c.loop()
	return c
}

// Device returns the torch device, if one was found.
func (c *Controller) Device() (torch.DeviceID, bool) {
	return c.device, c.hasDevice
}

// State reports whether the torch is on.
func (c *Controller) State() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.on
}

// Counts returns transition and notice counts.
func (c *Controller) Counts() Counts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts
}

// Set turns the torch on or off. On failure the state is unchanged, a notice
// is emitted and the returned error wraps ErrDeviceUnavailable.
func (c *Controller) Set(ctx context.Context, on bool, src Source) error {
	r := c.do(ctx, command{on: on, source: src})
	return r.err
}

// Toggle inverts the torch state atomically and returns the new state.
func (c *Controller) Toggle(ctx context.Context, src Source) (bool, error) {
	r := c.do(ctx, command{toggle: true, source: src})
	return r.on, r.err
}

// Close stops the command loop. It does not touch the torch; callers turn it
// off first if required.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.quit)
	})
	<-c.done
	return nil
}

func (c *Controller) do(ctx context.Context, cmd command) result {
	cmd.reply = make(chan result, 1)

	select {
	case c.cmdCh <- cmd:
	case <-ctx.Done():
		return result{on: c.State(), err: ctx.Err()}
	case <-c.quit:
		return result{on: c.State(), err: ErrClosed}
	}

	// Once accepted the command always runs; wait for it unless the caller
	// gives up.
	select {
	case r := <-cmd.reply:
		return r
	case <-ctx.Done():
		return result{on: c.State(), err: ctx.Err()}
	}
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case cmd := <-c.cmdCh:
			cmd.reply <- c.apply(cmd)
		}
	}
}

func (c *Controller) apply(cmd command) result {
	cur := c.on
	target := cmd.on
	if cmd.toggle {
		target = !cur
	}

	if !c.hasDevice {
		c.notify(Notice{Message: NoticeNoFlash})
		return result{on: cur, err: ErrDeviceUnavailable}
	}

	if err := c.platform.SetTorchMode(c.device, target); err != nil {
		log.Printf("flash: set torch %s on %s: %v", onOff(target), c.device, err)
		c.notify(Notice{Message: NoticeAccessFailed, Err: err})
		return result{on: cur, err: fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)}
	}

	if target == cur {
		return result{on: cur}
	}

	c.mu.Lock()
	c.on = target
	if target {
		c.counts.On++
	} else {
		c.counts.Off++
	}
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.TorchChanged(Change{On: target, Source: cmd.source, Time: c.now()})
	}
	return result{on: target}
}

func (c *Controller) notify(n Notice) {
	n.Time = c.now()
	c.mu.Lock()
	c.counts.Notices++
	c.mu.Unlock()

	log.Printf("flash: notice: %s", n.Message)
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
