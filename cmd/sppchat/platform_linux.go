//go:build linux

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"sppchat/internal/config"
	"sppchat/internal/connmgr"
	"sppchat/internal/link"
	"sppchat/internal/rfcomm"
)

// platformStrategies returns the configured socket strategies in order.
func platformStrategies(cfg *config.Config, log *zap.Logger) ([]link.Strategy, error) {
	out := make([]link.Strategy, 0, len(cfg.Strategies))
	for _, name := range cfg.Strategies {
		switch name {
		case config.StrategyProfile:
			out = append(out, connmgr.NewProfileStrategy(cfg.Adapter, log))
		case config.StrategyRFCOMM:
			out = append(out, rfcomm.New(cfg.RFCOMMChannel, log))
		default:
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
	}
	return out, nil
}

// radio is the adapter power control watchRadio relies on.
type radio interface {
	Powered(ctx context.Context, adapter string) (bool, error)
	SetPowered(ctx context.Context, adapter string, on bool) error
}

type bluezRadio struct{}

func (bluezRadio) Powered(ctx context.Context, adapter string) (bool, error) {
	return connmgr.Powered(ctx, adapter)
}

func (bluezRadio) SetPowered(ctx context.Context, adapter string, on bool) error {
	return connmgr.SetPowered(ctx, adapter, on)
}

// watchRadio follows the adapter's Powered property in the background.
func watchRadio(ctx context.Context, a *app) {
	ensurePowered(ctx, a, bluezRadio{})

	adapter := a.cfg.Adapter
	go func() {
		err := connmgr.WatchPower(ctx, adapter, a.log, a.radioChanged)
		if err != nil && ctx.Err() == nil {
			a.log.Warn("radio watcher stopped", zap.String("adapter", adapter), zap.Error(err))
		}
	}()
}

// ensurePowered reports a switched-off adapter and, with power_on set,
// switches it on.
func ensurePowered(ctx context.Context, a *app, r radio) {
	adapter := a.cfg.Adapter
	on, err := r.Powered(ctx, adapter)
	if err != nil {
		a.log.Warn("adapter state unknown", zap.String("adapter", adapter), zap.Error(err))
		return
	}
	if on {
		return
	}
	if !a.cfg.PowerOn {
		a.log.Warn("adapter is powered off; run `bluetoothctl power on` or set power_on", zap.String("adapter", adapter))
		return
	}
	if err := r.SetPowered(ctx, adapter, true); err != nil {
		a.log.Warn("power on adapter", zap.String("adapter", adapter), zap.Error(err))
		return
	}
	a.log.Info("adapter powered on", zap.String("adapter", adapter))
}
