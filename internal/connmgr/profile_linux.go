//go:build linux

package connmgr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	dbus "github.com/godbus/dbus/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sppchat/internal/link"
)

const (
	bluezService         = "org.bluez"
	profileInterfaceName = "org.bluez.Profile1"
	profileManagerIface  = "org.bluez.ProfileManager1"
	deviceIface          = "org.bluez.Device1"
	adapterIface         = "org.bluez.Adapter1"
	objManagerIface      = "org.freedesktop.DBus.ObjectManager"
	propsIface           = "org.freedesktop.DBus.Properties"
)

var pathCounter uint64

// ProfileStrategy creates sockets through a BlueZ client profile for SPPUUID.
type ProfileStrategy struct {
	adapter string
	log     *zap.Logger
}

// NewProfileStrategy returns a strategy bound to adapter ("" means hci0).
func NewProfileStrategy(adapter string, log *zap.Logger) *ProfileStrategy {
	if adapter == "" {
		adapter = DefaultAdapter
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileStrategy{adapter: adapter, log: log}
}

func (s *ProfileStrategy) Name() string { return "profile" }

// Create resolves peer on the adapter and registers a client profile.
// Pairing and the RFCOMM handshake happen in the socket's Connect.
func (s *ProfileStrategy) Create(ctx context.Context, peer string) (link.Socket, error) {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connmgr: connect system bus: %w", err)
	}
	sock := &profileSocket{bus: bus, log: s.log}

	dev, err := findDevice(ctx, bus, s.adapter, peer)
	if err != nil {
		sock.Close()
		return nil, err
	}
	sock.dev = dev

	// Export Profile1 under a path unique to this socket.
	sock.prof = &profile{ch: make(chan acceptResult, 1), want: dbus.ObjectPath(dev.Path)}
	id := atomic.AddUint64(&pathCounter, 1)
	sock.path = dbus.ObjectPath("/org/sppchat/connmgr/client/p" + strconv.FormatUint(id, 10))
	if err := bus.Export(sock.prof, sock.path, profileInterfaceName); err != nil {
		sock.Close()
		return nil, fmt.Errorf("connmgr: export client profile: %w", err)
	}
	sock.cleanup = append(sock.cleanup, func() error {
		return bus.Export(nil, sock.path, profileInterfaceName)
	})

	pm := bus.Object(bluezService, dbus.ObjectPath("/org/bluez"))
	opts := map[string]dbus.Variant{
		"Role": dbus.MakeVariant("client"),
	}
	if call := pm.CallWithContext(ctx, profileManagerIface+".RegisterProfile", 0, sock.path, SPPUUID, opts); call.Err != nil {
		sock.Close()
		return nil, fmt.Errorf("connmgr: RegisterProfile(client): %w", call.Err)
	}
	sock.cleanup = append(sock.cleanup, func() error {
		return pm.Call(profileManagerIface+".UnregisterProfile", 0, sock.path).Err
	})

	s.log.Debug("connmgr: client profile registered",
		zap.String("device", dev.Path),
		zap.String("profile", string(sock.path)),
	)
	return sock, nil
}

// profile implements org.bluez.Profile1 and forwards NewConnection events.
type profile struct {
	mu       sync.Mutex
	ch       chan acceptResult
	want     dbus.ObjectPath
	accepted bool // true after first delivery; later connections are rejected
}

type acceptResult struct {
	fd  int
	dev Device
}

// Release is called by BlueZ when the profile is being released.
func (p *profile) Release() *dbus.Error { return nil }

// Cancel may be called to indicate a canceled request.
func (p *profile) Cancel() *dbus.Error { return nil }

// RequestDisconnection is ignored; the transport owner closes the FD.
func (p *profile) RequestDisconnection(_ dbus.ObjectPath) *dbus.Error { return nil }

// NewConnection delivers the RFCOMM socket FD to the waiting Connect.
func (p *profile) NewConnection(dev dbus.ObjectPath, fd dbus.UnixFD, _ map[string]dbus.Variant) *dbus.Error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accepted || (p.want != "" && dev != p.want) {
		_ = os.NewFile(uintptr(fd), "rfcomm").Close()
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{"unexpected connection"}}
	}
	select {
	case p.ch <- acceptResult{fd: int(fd), dev: Device{Path: string(dev), MAC: macFromPath(string(dev))}}:
		p.accepted = true
		return nil
	default:
		_ = os.NewFile(uintptr(fd), "rfcomm").Close()
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{"no receiver"}}
	}
}

// profileSocket is a registered client profile waiting to be connected.
type profileSocket struct {
	bus  *dbus.Conn
	log  *zap.Logger
	dev  Device
	prof *profile
	path dbus.ObjectPath

	once    sync.Once
	cleanup []func() error
	err     error
}

func (s *profileSocket) Connect(ctx context.Context) (link.Transport, error) {
	devObj := s.bus.Object(bluezService, dbus.ObjectPath(s.dev.Path))
	if !s.dev.Paired {
		s.log.Info("connmgr: pairing", zap.String("device", s.dev.Path))
		if err := devObj.CallWithContext(ctx, deviceIface+".Pair", 0).Err; err != nil && !isAlreadyExists(err) {
			return nil, fmt.Errorf("connmgr: Pair: %w", err)
		}
	}
	if call := devObj.CallWithContext(ctx, deviceIface+".ConnectProfile", 0, SPPUUID); call.Err != nil {
		return nil, fmt.Errorf("connmgr: ConnectProfile: %w", call.Err)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("connmgr: connect canceled: %w", ctx.Err())
	case res := <-s.prof.ch:
		tr, err := link.NewFDTransport(res.fd, "rfcomm")
		if err != nil {
			return nil, err
		}
		return &profileTransport{Transport: tr, release: s.Close}, nil
	}
}

// Close unregisters the profile and closes the private bus, in reverse
// order of acquisition. It is safe to call more than once.
func (s *profileSocket) Close() error {
	s.once.Do(func() {
		for i := len(s.cleanup) - 1; i >= 0; i-- {
			s.err = multierr.Append(s.err, s.cleanup[i]())
		}
		s.cleanup = nil
		s.err = multierr.Append(s.err, s.bus.Close())
		// An FD delivered after Connect gave up is still ours.
		if s.prof != nil {
			select {
			case res := <-s.prof.ch:
				s.err = multierr.Append(s.err, os.NewFile(uintptr(res.fd), "rfcomm").Close())
			default:
			}
		}
	})
	return s.err
}

// profileTransport keeps the profile registered for the life of the FD.
type profileTransport struct {
	link.Transport
	release func() error
}

func (t *profileTransport) Close() error {
	return multierr.Append(t.Transport.Close(), t.release())
}

func isAlreadyExists(err error) bool {
	var derr dbus.Error
	if errors.As(err, &derr) {
		return derr.Name == "org.bluez.Error.AlreadyExists"
	}
	return strings.Contains(err.Error(), "AlreadyExists")
}

// findDevice looks peer up among the objects BlueZ knows on adapter.
func findDevice(ctx context.Context, bus *dbus.Conn, adapter, peer string) (Device, error) {
	objs, err := managedObjects(ctx, bus)
	if err != nil {
		return Device{}, err
	}
	direct := dbus.ObjectPath(DevicePath(adapter, peer))
	if dev, ok := deviceFromIfaces(direct, objs[direct]); ok {
		return dev, nil
	}
	prefix := AdapterPath(adapter) + "/"
	for path, ifaces := range objs {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		dev, ok := deviceFromIfaces(path, ifaces)
		if ok && strings.EqualFold(dev.MAC, peer) {
			return dev, nil
		}
	}
	return Device{}, fmt.Errorf("connmgr: device %s not known to %s", peer, adapter)
}

func managedObjects(ctx context.Context, bus *dbus.Conn) (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	obj := bus.Object(bluezService, dbus.ObjectPath("/"))
	var objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if call := obj.CallWithContext(ctx, objManagerIface+".GetManagedObjects", 0); call.Err != nil {
		return nil, fmt.Errorf("connmgr: GetManagedObjects: %w", call.Err)
	} else if err := call.Store(&objs); err != nil {
		return nil, fmt.Errorf("connmgr: decode GetManagedObjects: %w", err)
	}
	return objs, nil
}

func deviceFromIfaces(path dbus.ObjectPath, ifaces map[string]map[string]dbus.Variant) (Device, bool) {
	props, ok := ifaces[deviceIface]
	if !ok {
		return Device{}, false
	}
	dev := Device{Path: string(path)}
	if v, ok := props["Address"]; ok {
		dev.MAC, _ = v.Value().(string)
	}
	if v, ok := props["Name"]; ok {
		dev.Name, _ = v.Value().(string)
	}
	if v, ok := props["Alias"]; ok {
		dev.Alias, _ = v.Value().(string)
	}
	if v, ok := props["Paired"]; ok {
		dev.Paired, _ = v.Value().(bool)
	}
	if dev.MAC == "" {
		dev.MAC = macFromPath(string(path))
	}
	return dev, true
}
