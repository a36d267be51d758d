package hotplug

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"videowall/internal/logging"
)

// Event describes one display topology change.
type Event struct {
	Action    string
	Connector string
}

// Monitor listens for udev netlink events on the drm subsystem and reports
// display connect/disconnect while a wall session is running. The engine
// never reacts automatically: screen identity is fixed at startup, so a
// topology change only produces a warning and an optional callback.
type Monitor struct {
	logger   *slog.Logger
	onChange func(Event)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor creates a display hotplug monitor. The callback may be nil.
func NewMonitor(logger *slog.Logger, onChange func(Event)) *Monitor {
	return &Monitor{
		logger:   logging.NewComponentLogger(logger, "hotplug"),
		onChange: onChange,
	}
}

// Start begins listening for udev netlink events.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; display changes will go unnoticed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the process has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "no warning if a display is unplugged mid-session"),
		)
		return nil // non-fatal: the wall runs fine without hotplug awareness
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	// Pass quit channel to goroutine to avoid reading m.quit without lock
	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("display hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("display hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	matcher := m.buildMatcher()

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, matcher)

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
			)
		}
	}
}

// buildMatcher matches display events: SUBSYSTEM=drm, ACTION=change|add|remove.
func (m *Monitor) buildMatcher() netlink.Matcher {
	action := "change|add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "drm",
		},
	})
	return rules
}

// handleEvent warns about a matched display topology change.
func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	connector := m.extractConnector(uevent)
	event := Event{Action: string(uevent.Action), Connector: connector}

	m.logger.Warn("display topology changed",
		logging.String("action", event.Action),
		logging.String("connector", event.Connector),
		logging.String(logging.FieldEventType, "display_hotplug"),
		logging.String(logging.FieldImpact, "screen assignments are fixed at startup; restart the wall if displays moved"),
	)

	if m.onChange != nil {
		m.onChange(event)
	}
}

// extractConnector gets the drm device name from a uevent.
func (m *Monitor) extractConnector(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}

	// Fall back to the DEVPATH tail (e.g. /devices/pci.../drm/card0-HDMI-A-1)
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
