// Package connmgr talks to BlueZ over the system D-Bus. It provides the
// primary socket strategy for link (an SPP client profile registered with
// ProfileManager1, connected with Device1.ConnectProfile) and a watcher for
// the adapter's Powered property.
//
// Sockets created by ProfileStrategy own a private bus connection, the
// exported Profile1 object and its registration; all of it is released when
// the socket or the transport it produced is closed.
package connmgr

import "strings"

const (
	// SPPUUID is the Serial Port Profile UUID used for RFCOMM connections.
	SPPUUID = "00001101-0000-1000-8000-00805f9b34fb"

	// DefaultAdapter is the controller used when none is configured.
	DefaultAdapter = "hci0"
)

// Device is the BlueZ view of a remote device.
type Device struct {
	Path   string // D-Bus object path, e.g. /org/bluez/hci0/dev_XX_XX_XX_XX_XX_XX
	MAC    string
	Name   string
	Alias  string
	Paired bool
}

// AdapterPath returns the object path of a controller such as "hci0".
func AdapterPath(adapter string) string {
	if adapter == "" {
		adapter = DefaultAdapter
	}
	return "/org/bluez/" + adapter
}

// DevicePath returns the object path BlueZ uses for mac on adapter.
func DevicePath(adapter, mac string) string {
	return AdapterPath(adapter) + "/dev_" + strings.ReplaceAll(strings.ToUpper(mac), ":", "_")
}

func macFromPath(p string) string {
	// Expect .../dev_XX_XX_XX_XX_XX_XX
	idx := strings.LastIndex(p, "/dev_")
	if idx < 0 {
		return ""
	}
	return strings.ReplaceAll(p[idx+5:], "_", ":")
}
