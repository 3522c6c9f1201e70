//go:build linux

package connmgr

import (
	"context"
	"errors"
	"fmt"

	dbus "github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// Powered reports whether adapter is switched on.
func Powered(ctx context.Context, adapter string) (bool, error) {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return false, fmt.Errorf("connmgr: connect system bus: %w", err)
	}
	defer bus.Close()

	var v dbus.Variant
	call := bus.Object(bluezService, dbus.ObjectPath(AdapterPath(adapter))).
		CallWithContext(ctx, propsIface+".Get", 0, adapterIface, "Powered")
	if call.Err != nil {
		return false, fmt.Errorf("connmgr: get Powered: %w", call.Err)
	}
	if err := call.Store(&v); err != nil {
		return false, fmt.Errorf("connmgr: decode Powered: %w", err)
	}
	on, ok := v.Value().(bool)
	if !ok {
		return false, errors.New("connmgr: Powered is not a boolean")
	}
	return on, nil
}

// SetPowered switches adapter on or off.
func SetPowered(ctx context.Context, adapter string, on bool) error {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connmgr: connect system bus: %w", err)
	}
	defer bus.Close()

	call := bus.Object(bluezService, dbus.ObjectPath(AdapterPath(adapter))).
		CallWithContext(ctx, propsIface+".Set", 0, adapterIface, "Powered", dbus.MakeVariant(on))
	if call.Err != nil {
		return fmt.Errorf("connmgr: set Powered=%t: %w", on, call.Err)
	}
	return nil
}

// WatchPower calls fn each time adapter's Powered property changes, until
// ctx is done. fn runs on the watcher goroutine.
func WatchPower(ctx context.Context, adapter string, log *zap.Logger, fn func(powered bool)) error {
	if log == nil {
		log = zap.NewNop()
	}
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connmgr: connect system bus: %w", err)
	}
	defer bus.Close()

	path := dbus.ObjectPath(AdapterPath(adapter))
	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
	}
	if err := bus.AddMatchSignal(match...); err != nil {
		return fmt.Errorf("connmgr: AddMatchSignal: %w", err)
	}
	defer func() { _ = bus.RemoveMatchSignal(match...) }()

	sigCh := make(chan *dbus.Signal, 16)
	bus.Signal(sigCh)
	defer bus.RemoveSignal(sigCh)

	log.Debug("connmgr: watching adapter power", zap.String("adapter", string(path)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-sigCh:
			if !ok {
				return errors.New("connmgr: system bus closed")
			}
			if sig == nil || sig.Path != path {
				continue
			}
			if on, ok := poweredChange(sig.Body); ok {
				log.Info("connmgr: adapter power changed", zap.Bool("powered", on))
				fn(on)
			}
		}
	}
}

// poweredChange extracts Adapter1.Powered from a PropertiesChanged body.
func poweredChange(body []interface{}) (bool, bool) {
	if len(body) < 2 {
		return false, false
	}
	iface, _ := body[0].(string)
	if iface != adapterIface {
		return false, false
	}
	changed, _ := body[1].(map[string]dbus.Variant)
	v, ok := changed["Powered"]
	if !ok {
		return false, false
	}
	on, ok := v.Value().(bool)
	return on, ok
}
