// Package busconn wraps the session message bus connection and the small
// slice of org.freedesktop.DBus surface the registry needs: name
// enumeration and the two signals that drive provider lifecycle.
package busconn

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

const (
	dbusDest = "org.freedesktop.DBus"
	dbusPath = dbus.ObjectPath("/org/freedesktop/DBus")

	propertiesInterface = "org.freedesktop.DBus.Properties"
)

// Conn is a thin, mockable wrapper around a *dbus.Conn.
type Conn struct {
	raw *dbus.Conn
}

// Connect acquires the session bus connection. Failure here is the one
// registry-init-fatal condition in spec §4.3/§7 (ErrorKindBusUnavailable).
func Connect(ctx context.Context) (*Conn, error) {
	raw, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("busconn: connect session bus: %w", err)
	}
	logrus.Debug("busconn: session bus connection established")
	return &Conn{raw: raw}, nil
}

// Close releases the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// ListNames returns org.freedesktop.DBus.ListNames.
func (c *Conn) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	obj := c.raw.Object(dbusDest, dbusPath)
	if err := obj.CallWithContext(ctx, dbusDest+".ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("busconn: ListNames: %w", err)
	}
	return names, nil
}

// ListActivatableNames returns org.freedesktop.DBus.ListActivatableNames.
func (c *Conn) ListActivatableNames(ctx context.Context) ([]string, error) {
	var names []string
	obj := c.raw.Object(dbusDest, dbusPath)
	if err := obj.CallWithContext(ctx, dbusDest+".ListActivatableNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("busconn: ListActivatableNames: %w", err)
	}
	return names, nil
}

// SubscribeLifecycleSignals adds match rules for ActivatableServicesChanged
// and NameOwnerChanged and returns the raw signal channel they (and any
// other signal traffic on this connection) arrive on.
func (c *Conn) SubscribeLifecycleSignals(ctx context.Context) (<-chan *dbus.Signal, error) {
	if err := c.raw.AddMatchSignalContext(ctx,
		dbus.WithMatchInterface(dbusDest),
		dbus.WithMatchMember("ActivatableServicesChanged"),
		dbus.WithMatchObjectPath(dbusPath),
	); err != nil {
		return nil, fmt.Errorf("busconn: subscribe ActivatableServicesChanged: %w", err)
	}
	if err := c.raw.AddMatchSignalContext(ctx,
		dbus.WithMatchInterface(dbusDest),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchObjectPath(dbusPath),
	); err != nil {
		return nil, fmt.Errorf("busconn: subscribe NameOwnerChanged: %w", err)
	}
	ch := make(chan *dbus.Signal, 32)
	c.raw.Signal(ch)
	return ch, nil
}

// SubscribePropertiesChanged adds a match rule for PropertiesChanged signals
// on name's derived object path, used to notice a provider's Voices update.
func (c *Conn) SubscribePropertiesChanged(ctx context.Context, name string) error {
	path := ObjectPathFor(name)
	if err := c.raw.AddMatchSignalContext(ctx,
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(path),
	); err != nil {
		return fmt.Errorf("busconn: subscribe PropertiesChanged for %s: %w", name, err)
	}
	return nil
}

// ObjectPathFor derives a provider's object path from its well-known bus
// name by replacing '.' with '/' and prepending '/'.
func ObjectPathFor(name string) dbus.ObjectPath {
	b := make([]byte, 0, len(name)+1)
	b = append(b, '/')
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			b = append(b, '/')
		} else {
			b = append(b, name[i])
		}
	}
	return dbus.ObjectPath(b)
}

// Object returns a bus object proxy for name at its derived provider path.
func (c *Conn) Object(name string) dbus.BusObject {
	return c.raw.Object(name, ObjectPathFor(name))
}

// Raw exposes the underlying *dbus.Conn for callers (e.g. the provider
// package) that need to build a proxy beyond this wrapper's surface.
func (c *Conn) Raw() *dbus.Conn {
	return c.raw
}
