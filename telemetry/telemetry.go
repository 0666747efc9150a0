// Package telemetry provides the opt-in usage reporting for the pgweave
// CLI. Nothing is collected unless PGWEAVE_TELEMETRY is set to a truthy
// value; the library packages never import this.
package telemetry

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"
)

const (
	batchSize = 16

	// defaultEndpoint receives events when no override is configured.
	defaultEndpoint = "https://telemetry.pgweave.dev/v1/events"
)

// Event is one recorded CLI occurrence.
type Event struct {
	Kind      string        `json:"kind"`
	Command   string        `json:"command,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version"`
	OS        string        `json:"os"`
	Arch      string        `json:"arch"`
}

// Collector batches events and posts them to the configured endpoint.
// A collector with no endpoint drops everything, so callers record
// unconditionally.
type Collector struct {
	endpoint string
	version  string
	client   *http.Client

	mu     sync.Mutex
	events []Event
}

// New builds a collector for the current process. Collection is off
// unless PGWEAVE_TELEMETRY is truthy; PGWEAVE_TELEMETRY_ENDPOINT
// overrides where events are posted.
func New(version string) *Collector {
	endpoint := ""
	if optedIn, _ := strconv.ParseBool(os.Getenv("PGWEAVE_TELEMETRY")); optedIn {
		endpoint = defaultEndpoint
		if override := os.Getenv("PGWEAVE_TELEMETRY_ENDPOINT"); override != "" {
			endpoint = override
		}
	}
	return &Collector{
		endpoint: endpoint,
		version:  version,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether events are being collected.
func (c *Collector) Enabled() bool {
	return c != nil && c.endpoint != ""
}

// Record buffers one event, flushing when the batch fills.
func (c *Collector) Record(ev Event) {
	if !c.Enabled() {
		return
	}
	ev.Timestamp = time.Now().UTC()
	ev.Version = c.version
	ev.OS = runtime.GOOS
	ev.Arch = runtime.GOARCH

	c.mu.Lock()
	c.events = append(c.events, ev)
	full := len(c.events) >= batchSize
	c.mu.Unlock()

	if full {
		c.Flush()
	}
}

// Flush posts the buffered events. Failures are swallowed: telemetry
// must never affect a command's outcome.
func (c *Collector) Flush() {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	batch := c.events
	c.events = nil
	c.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return
	}
	resp, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return
	}
	resp.Body.Close()
}

// Close flushes any pending events.
func (c *Collector) Close() {
	c.Flush()
}
