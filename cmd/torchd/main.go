// Command torchd drives a flash LED as a torch with strobe, SOS, shake-to-toggle
// and an auto-off timer, controlled over HTTP, MQTT or a terminal UI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/sweeney/torchd/internal/app"
	"github.com/sweeney/torchd/internal/config"
	"github.com/sweeney/torchd/internal/events"
	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/metrics"
	"github.com/sweeney/torchd/internal/motion"
	"github.com/sweeney/torchd/internal/mqtt"
	"github.com/sweeney/torchd/internal/pattern"
	"github.com/sweeney/torchd/internal/status"
	"github.com/sweeney/torchd/internal/torch"
	"github.com/sweeney/torchd/internal/tui"
	"github.com/sweeney/torchd/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	runE := func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd, &cfg); err != nil {
			return err
		}
		return run(cfg)
	}

	root := &cobra.Command{
		Use:          "torchd",
		Short:        "Flashlight daemon: torch, strobe, SOS, shake toggle and auto-off timer",
		SilenceUsage: true,
		RunE:         runE,
	}
	cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the daemon (default)",
		RunE:  runE,
	})
	root.AddCommand(&cobra.Command{
		Use:   "state",
		Short: "List torch devices and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, &cfg); err != nil {
				return err
			}
			p, err := openPlatform(cfg)
			if err != nil {
				return fmt.Errorf("init torch: %w", err)
			}
			defer p.Close()
			return printState(cmd.OutOrStdout(), p)
		},
	})
	return root
}

func loadConfig(cmd *cobra.Command, cfg *config.Config) error {
	if err := config.Load(cmd.Flags(), os.Getenv); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return cfg.Validate()
}

func run(cfg config.Config) error {
	platform, err := openPlatform(cfg)
	if err != nil {
		return fmt.Errorf("init torch: %w", err)
	}
	defer platform.Close()

	if cfg.TUI {
		// The screen owns the terminal; logs go to a file instead.
		f, err := tea.LogToFile(filepath.Join(os.TempDir(), "torchd.log"), "")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
	}

	bus := events.New()
	fc := flash.New(platform, flash.Options{Notifier: bus, Observer: bus})
	sched := pattern.New(fc, pattern.Options{Observer: bus, StrobeInterval: cfg.Strobe})

	trigger := openTrigger(cfg, fc, bus.Shake)
	if trigger != nil {
		defer trigger.Close()
	}

	ws := resolveWSBroker(cfg.WSBroker, cfg.Broker)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg, ws, trigger != nil))
	if id, ok := fc.Device(); ok {
		tracker.SetDevice(string(id), true)
	}
	if info := config.ReadNetworkInfo(cfg.NetworkEnv); info != nil {
		tracker.SetNetwork(info)
	}
	torchApp := app.New(fc, sched, tracker)

	var publisher mqttPublisher = mqtt.Discard{}
	if cfg.Broker != "" {
		publisher = mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.Broker,
			Controls: torchApp,
			OnConnectionChange: func(connected bool) {
				tracker.SetMQTTConnected(connected)
				metrics.SetMQTTConnected(connected)
			},
		})
	}
	defer publisher.Close()

	defer subscribe(bus, tracker, publisher)()
	if cfg.Metrics {
		defer metrics.Attach(bus)()
	}

	// Publish startup event with full status snapshot
	snap := torchApp.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.HTTP != "" {
		ln, err := net.Listen("tcp", cfg.HTTP)
		if err != nil {
			return fmt.Errorf("listen http: %w", err)
		}
		srv := web.New(cfg.HTTP, torchApp, web.Options{
			AuthUser: cfg.AuthUser,
			AuthHash: cfg.AuthHash,
			Metrics:  cfg.Metrics,
		})
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http server listening on %s", ln.Addr())
	}

	device := "none"
	if snap.HasDevice {
		device = snap.DeviceID
	}
	log.Printf("started: platform=%s device=%s strobe=%v broker=%s heartbeat=%v",
		cfg.Platform, device, cfg.Strobe, cfg.Broker, cfg.Heartbeat)

	l := &loop{
		app:        torchApp,
		trigger:    trigger,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		networkEnv: cfg.NetworkEnv,
		now:        time.Now,
		sdNotify:   sdNotify,
	}

	if trigger != nil {
		t := time.NewTicker(cfg.SensorPoll)
		defer t.Stop()
		l.sensorTick = t.C
	}
	if cfg.Heartbeat > 0 {
		t := time.NewTicker(cfg.Heartbeat)
		defer t.Stop()
		l.heartbeatTick = t.C
	}
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		l.watchdogTick = t.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	l.sig = sigCh

	if cfg.TUI {
		quit := make(chan struct{})
		notices := make(chan flash.Notice, 8)
		defer bus.OnNotice(func(e events.NoticeEvent) {
			select {
			case notices <- e.Notice:
			default:
			}
		})()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			if err := tui.Run(ctx, torchApp, notices); err != nil {
				log.Printf("tui: %v", err)
			}
			close(quit)
		}()
		// Restore the terminal before exiting on a signal.
		defer func() {
			cancel()
			<-quit
		}()
		l.quit = quit
	}

	sdNotify(daemon.SdNotifyReady)
	return l.run()
}

// mqttPublisher is what the daemon needs from the MQTT side.
type mqttPublisher interface {
	mqtt.Publisher
	mqtt.ConnectionStatus
}

// subscribe forwards bus events to the tracker and MQTT. Returns a function
// that removes every subscription.
func subscribe(bus *events.Bus, tracker *status.Tracker, pub mqtt.Publisher) func() {
	unsubs := []func(){
		bus.OnTorch(func(e events.TorchEvent) {
			tracker.TorchChanged(e.Change)
			log.Printf("event: %s (source=%s)", mqtt.EventName(e.On), e.Source)
			if err := pub.Publish(e.Change); err != nil {
				log.Printf("publish error: %v", err)
			}
		}),
		bus.OnPattern(func(e events.PatternEvent) {
			tracker.PatternChanged(e.Change)
			if err := pub.PublishPattern(e.Change); err != nil {
				log.Printf("publish pattern error: %v", err)
			}
		}),
		bus.OnNotice(func(e events.NoticeEvent) {
			tracker.Notify(e.Notice)
			if err := pub.PublishSystem(mqtt.NoticeEvent(e.Notice)); err != nil {
				log.Printf("publish notice error: %v", err)
			}
		}),
		bus.OnShake(func(events.ShakeEvent) {
			tracker.ShakeDetected()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// loop is the daemon's main select loop. Nil channels disable their feature.
type loop struct {
	app        *app.App
	trigger    *motion.Trigger
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	networkEnv string
	now        func() time.Time
	sdNotify   func(state string)

	sensorTick    <-chan time.Time
	heartbeatTick <-chan time.Time
	watchdogTick  <-chan time.Time
	sig           <-chan os.Signal
	quit          <-chan struct{}
}

// pollTimeout bounds a shake-triggered toggle.
const pollTimeout = 2 * time.Second

func (l *loop) run() error {
	for {
		select {
		case s := <-l.sig:
			log.Printf("received %v, shutting down", s)
			return l.shutdown(signalName(s))

		case <-l.quit:
			log.Printf("terminal ui closed, shutting down")
			return l.shutdown("QUIT")

		case <-l.sensorTick:
			if l.trigger == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
			l.trigger.Poll(ctx, l.now())
			cancel()

		case <-l.heartbeatTick:
			l.heartbeat()

		case <-l.watchdogTick:
			l.notify(daemon.SdNotifyWatchdog)
		}
	}
}

func (l *loop) heartbeat() {
	l.refreshConnectivity()
	if info := config.ReadNetworkInfo(l.networkEnv); info != nil {
		l.tracker.SetNetwork(info)
	}
	snap := l.app.Snapshot()
	log.Printf("heartbeat: uptime=%v torch=%s on=%d off=%d notices=%d shakes=%d",
		snap.Uptime().Truncate(time.Second), status.StateString(snap.FlashOn),
		snap.Counts.Torch.On, snap.Counts.Torch.Off, snap.Counts.Torch.Notices, snap.Counts.Shakes)

	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

// shutdown stops every pattern, forces the torch off and publishes the
// retained SHUTDOWN event.
func (l *loop) shutdown(reason string) error {
	l.notify(daemon.SdNotifyStopping)
	if err := l.app.Shutdown(); err != nil {
		log.Printf("torch off at shutdown: %v", err)
	}

	l.refreshConnectivity()
	snap := l.app.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
	return nil
}

func (l *loop) refreshConnectivity() {
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) notify(state string) {
	if l.sdNotify != nil {
		l.sdNotify(state)
	}
}

func sdNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Printf("systemd notify %q: %v", state, err)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// openPlatform selects the torch backend. "auto" prefers a flash-capable LED
// class device and falls back to the GPIO line.
func openPlatform(cfg config.Config) (torch.Platform, error) {
	switch cfg.Platform {
	case config.PlatformSysfs:
		return torch.NewSysfsPlatform(cfg.LEDRoot), nil
	case config.PlatformGPIO:
		return openGPIO(cfg)
	}

	sysfs := torch.NewSysfsPlatform(cfg.LEDRoot)
	if _, err := torch.FindFlash(sysfs); err == nil {
		return sysfs, nil
	}
	gpio, err := openGPIO(cfg)
	if err != nil {
		log.Printf("torch: gpio unavailable, using sysfs: %v", err)
		return sysfs, nil
	}
	return gpio, nil
}

func openGPIO(cfg config.Config) (torch.Platform, error) {
	p, err := torch.NewGPIOPlatform(cfg.GPIOChip, cfg.GPIOPin, cfg.ActiveLow)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// openTrigger opens the accelerometer and wires it to the torch. Shake
// detection is optional: any failure disables it and returns nil.
func openTrigger(cfg config.Config, t motion.Toggler, onShake func()) *motion.Trigger {
	if cfg.SensorPoll <= 0 {
		return nil
	}
	dir := cfg.IIODevice
	if dir == "" {
		found, err := motion.FindIIOAccel(cfg.IIORoot)
		if err != nil {
			log.Printf("motion: shake detection disabled: %v", err)
			return nil
		}
		dir = found
	}
	reader, err := motion.NewIIOReader(dir)
	if err != nil {
		log.Printf("motion: shake detection disabled: %v", err)
		return nil
	}
	mode, _ := motion.ParseMode(cfg.ShakeMode)
	detector := motion.NewDetector(cfg.ShakeThreshold, cfg.ShakeCooldown, mode)
	log.Printf("motion: accelerometer %s, threshold %.1f m/s² (%s)", dir, cfg.ShakeThreshold, mode)
	return motion.NewTrigger(reader, detector, t, onShake)
}

func statusConfig(cfg config.Config, ws string, shake bool) status.Config {
	sc := status.Config{
		Platform:        cfg.Platform,
		StrobeMs:        cfg.Strobe.Milliseconds(),
		ShakeThreshold:  cfg.ShakeThreshold,
		ShakeCooldownMs: cfg.ShakeCooldown.Milliseconds(),
		ShakeMode:       cfg.ShakeMode,
		HeartbeatMs:     cfg.Heartbeat.Milliseconds(),
		Broker:          cfg.Broker,
		HTTPPort:        cfg.HTTP,
		WSBroker:        ws,
	}
	if shake {
		sc.SensorPollMs = cfg.SensorPoll.Milliseconds()
	}
	return sc
}

// printState lists every device with its flash capability and marks the one
// the daemon would use.
func printState(w io.Writer, p torch.Platform) error {
	ids, err := p.Devices()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	selected, _ := torch.FindFlash(p)
	for _, id := range ids {
		flashCap := "no"
		if p.HasFlash(id) {
			flashCap = "yes"
		}
		mark := ""
		if id == selected {
			mark = " (selected)"
		}
		fmt.Fprintf(w, "%s: flash=%s%s\n", id, flashCap, mark)
	}
	if selected == "" {
		fmt.Fprintln(w, flash.NoticeNoFlash)
	}
	return nil
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" || (ws == "=broker" && broker == "") {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
