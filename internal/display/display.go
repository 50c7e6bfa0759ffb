// Package display drives the compositor's power-save mode over D-Bus.
//
// LOW_POWER events do not map onto a sysfs tuning node; the desktop owns
// the panel. The daemon instead writes the display-config power-save
// property on the session bus, which defaults to the GNOME mutter object.
package display

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Session-bus defaults for the GNOME display config object.
const (
	DefaultDestination = "org.gnome.Mutter.DisplayConfig"
	DefaultObjectPath  = "/org/gnome/Mutter/DisplayConfig"
	DefaultInterface   = "org.gnome.Mutter.DisplayConfig"
	DefaultProperty    = "PowerSaveMode"

	// Mutter power-save modes: 0 = on, 1 = standby.
	DefaultLowPowerMode int32 = 1
	DefaultNormalMode   int32 = 0
)

// Options select the bus object and the two mode values written to it.
// The daemon config supplies the mode values; empty string fields and a
// zero LowPower fall back to the GNOME defaults.
type Options struct {
	Destination string
	ObjectPath  string
	Interface   string
	Property    string
	LowPower    int32
	Normal      int32
}

// Toggle writes the power-save property on the session bus. The
// connection is established lazily on first use and kept for later calls.
type Toggle struct {
	opts Options

	mu   sync.Mutex
	conn *dbus.Conn
}

// New builds a Toggle for the given options.
func New(opts Options) *Toggle {
	if opts.Destination == "" {
		opts.Destination = DefaultDestination
	}
	if opts.ObjectPath == "" {
		opts.ObjectPath = DefaultObjectPath
	}
	if opts.Interface == "" {
		opts.Interface = DefaultInterface
	}
	if opts.Property == "" {
		opts.Property = DefaultProperty
	}
	// Zero is the panel-on mode value, so a zero LowPower means unset.
	// Normal defaults to zero and needs no backfill.
	if opts.LowPower == 0 {
		opts.LowPower = DefaultLowPowerMode
	}
	return &Toggle{opts: opts}
}

// SetLowPower writes the low-power or normal mode value. Errors surface
// to the caller; a failed connection is retried on the next call.
func (t *Toggle) SetLowPower(on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := t.connLocked()
	if err != nil {
		return err
	}
	prop := t.opts.Interface + "." + t.opts.Property
	obj := conn.Object(t.opts.Destination, dbus.ObjectPath(t.opts.ObjectPath))
	if err := obj.SetProperty(prop, dbus.MakeVariant(t.modeFor(on))); err != nil {
		return fmt.Errorf("set %s on %s: %w", prop, t.opts.Destination, err)
	}
	return nil
}

func (t *Toggle) modeFor(on bool) int32 {
	if on {
		return t.opts.LowPower
	}
	return t.opts.Normal
}

func (t *Toggle) connLocked() (*dbus.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	t.conn = conn
	return conn, nil
}

// Close drops the bus connection. The Toggle reconnects if used again.
func (t *Toggle) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// Disabled satisfies the daemon's display dependency without touching any
// bus, for configs that turn display control off.
type Disabled struct{}

// SetLowPower does nothing.
func (Disabled) SetLowPower(bool) error { return nil }
