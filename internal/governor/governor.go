// Package governor gates hint processing on the active CPU scaling governor.
package governor

import (
	"log/slog"
	"os"
	"strings"
)

// DefaultPath is the sysfs file reporting cpu0's scaling governor.
const DefaultPath = "/sys/devices/system/cpu/cpu0/cpufreq/scaling_governor"

// DefaultAllowed lists the energy-aware governors hinting is meaningful
// under (current and legacy EAS).
var DefaultAllowed = []string{"schedutil", "sched"}

// Gate decides per event whether hints should be processed at all.
// The governor can change externally at any time, so Eligible reads the
// file on every call rather than caching.
type Gate struct {
	path    string
	allowed map[string]struct{}
	log     *slog.Logger
}

// New creates a gate reading path and accepting the listed governors.
func New(path string, allowed []string, log *slog.Logger) *Gate {
	if path == "" {
		path = DefaultPath
	}
	if len(allowed) == 0 {
		allowed = DefaultAllowed
	}
	if log == nil {
		log = slog.Default()
	}

	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[strings.TrimSpace(name)] = struct{}{}
	}

	return &Gate{path: path, allowed: set, log: log}
}

// Eligible reports whether the active governor supports hinting.
// Read failures and unknown governors log and report false; the caller
// drops the event and still responds with success.
func (g *Gate) Eligible() bool {
	data, err := os.ReadFile(g.path)
	if err != nil {
		g.log.Error("governor read failed, skipping hint", "path", g.path, "error", err)
		return false
	}

	name := strings.TrimSpace(string(data))
	if _, ok := g.allowed[name]; ok {
		return true
	}

	g.log.Error("governor not supported, skipping hint", "governor", name)
	return false
}

// Current returns the active governor name, or "" when unreadable.
func (g *Gate) Current() string {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
