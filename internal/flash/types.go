package flash

import (
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned when no flash-capable device was found at
// startup, or the platform refused access to it.
var ErrDeviceUnavailable = errors.New("flash: device unavailable")

// ErrClosed is returned for commands sent after Close.
var ErrClosed = errors.New("flash: controller closed")

// Source identifies who asked for a torch change.
type Source string

const (
	SourceManual   Source = "manual"
	SourceStrobe   Source = "strobe"
	SourceSOS      Source = "sos"
	SourceTimer    Source = "timer"
	SourceShake    Source = "shake"
	SourceShutdown Source = "shutdown"
)

// Notice messages shown to the user.
const (
	NoticeNoFlash      = "No flash available"
	NoticeAccessFailed = "Failed to access flashlight"
)

// Change describes a torch state transition.
type Change struct {
	On     bool
	Source Source
	Time   time.Time
}

// Notice is a transient user-visible message.
type Notice struct {
	Message string
	Err     error // underlying platform error, nil when no device exists
	Time    time.Time
}

// Counts tracks torch transitions and notices since startup.
type Counts struct {
	On      int
	Off     int
	Notices int
}

// Notifier receives user-visible notices. Called from the controller's
// command loop; implementations must not call back into the controller.
type Notifier interface {
	Notify(n Notice)
}

// Observer receives torch state changes. Same calling rules as Notifier.
type Observer interface {
	TorchChanged(c Change)
}
