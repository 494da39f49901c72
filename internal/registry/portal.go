package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"

	"github.com/voicebus/voicebus/internal/busconn"
)

// Sandboxed apps (Flatpak) talk to a filtered D-Bus proxy that usually
// refuses ListNames/ListActivatableNames wildcard enumeration. The desktop
// portal's org.freedesktop.portal.Speech interface exists for exactly this:
// it tells a sandboxed caller which provider names it is allowed to see,
// grounded on libspiel's portal discovery path for Flatpak confinement.
const (
	flatpakInfoPath = "/.flatpak-info"
	portalDest      = "org.freedesktop.portal.Desktop"
	portalPath      = dbus.ObjectPath("/org/freedesktop/portal/desktop")
	portalInterface = "org.freedesktop.portal.Speech"
)

func runningSandboxed() bool {
	_, err := os.Stat(flatpakInfoPath)
	return err == nil
}

// portalProviderNames asks the portal which provider bus names it proxies
// for this sandboxed process, standing in for direct bus enumeration.
func portalProviderNames(ctx context.Context, conn *busconn.Conn) ([]string, error) {
	var names []string
	obj := conn.Raw().Object(portalDest, portalPath)
	if err := obj.CallWithContext(ctx, portalInterface+".ListProviders", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("registry: portal ListProviders: %w", err)
	}
	return names, nil
}
