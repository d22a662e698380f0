package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/torchd/internal/events"
	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/pattern"
)

func scrape() string {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func eventually(t *testing.T, line string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(scrape(), line)
	}, time.Second, 5*time.Millisecond, "missing metric line %q", line)
}

func TestAttachRecordsTorch(t *testing.T) {
	bus := events.New()
	detach := Attach(bus)
	defer detach()

	bus.TorchChanged(flash.Change{On: true, Source: flash.SourceManual})
	eventually(t, `torchd_torch_on 1`)
	eventually(t, `torchd_transitions_total{source="manual",state="on"}`)

	bus.TorchChanged(flash.Change{On: false, Source: flash.SourceTimer})
	eventually(t, `torchd_torch_on 0`)
	eventually(t, `torchd_transitions_total{source="timer",state="off"}`)
}

func TestAttachRecordsPatterns(t *testing.T) {
	bus := events.New()
	defer Attach(bus)()

	bus.PatternChanged(pattern.Change{Kind: pattern.KindSOS, Active: true})
	eventually(t, `torchd_pattern_active{pattern="sos"} 1`)
	eventually(t, `torchd_pattern_runs_total{pattern="sos"}`)

	bus.PatternChanged(pattern.Change{Kind: pattern.KindSOS, Active: false})
	eventually(t, `torchd_pattern_active{pattern="sos"} 0`)
}

func TestAttachRecordsNoticesAndShakes(t *testing.T) {
	bus := events.New()
	defer Attach(bus)()

	bus.Notify(flash.Notice{Message: flash.NoticeNoFlash})
	bus.Shake()

	eventually(t, `torchd_notices_total 1`)
	eventually(t, `torchd_shakes_total 1`)
}

func TestSetMQTTConnected(t *testing.T) {
	SetMQTTConnected(true)
	assert.Contains(t, scrape(), "torchd_mqtt_connected 1")
	SetMQTTConnected(false)
	assert.Contains(t, scrape(), "torchd_mqtt_connected 0")
}
