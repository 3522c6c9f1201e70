//go:build !linux

package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"sppchat/internal/config"
	"sppchat/internal/link"
)

var errUnsupported = errors.New("bluetooth sockets are only supported on linux")

func platformStrategies(_ *config.Config, _ *zap.Logger) ([]link.Strategy, error) {
	return nil, errUnsupported
}

func watchRadio(_ context.Context, _ *app) {}
