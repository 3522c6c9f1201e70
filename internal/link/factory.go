package link

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Strategy is one way of creating a socket for a peer.
type Strategy interface {
	Name() string
	Create(ctx context.Context, peer string) (Socket, error)
}

// SocketFactory resolves a peer to a socket ready for Connect.
type SocketFactory interface {
	Acquire(ctx context.Context, peer string) (Socket, error)
}

// Fallback is a SocketFactory that tries its strategies in order and
// returns the first socket that could be created.
type Fallback struct {
	Strategies []Strategy
	Log        *zap.Logger
}

// NewFallback returns a Fallback over strategies, tried in the given order.
func NewFallback(log *zap.Logger, strategies ...Strategy) *Fallback {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fallback{Strategies: strategies, Log: log}
}

// Acquire implements SocketFactory. When every strategy fails the returned
// error wraps ErrSocketCreationFailed and carries each strategy's error.
func (f *Fallback) Acquire(ctx context.Context, peer string) (Socket, error) {
	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}
	if len(f.Strategies) == 0 {
		return nil, fmt.Errorf("%w: no strategies configured", ErrSocketCreationFailed)
	}
	var errs error
	for _, s := range f.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSocketCreationFailed, err)
		}
		sock, err := s.Create(ctx, peer)
		if err == nil {
			log.Debug("link: socket created", zap.String("strategy", s.Name()), zap.String("peer", peer))
			return sock, nil
		}
		log.Warn("link: socket strategy failed",
			zap.String("strategy", s.Name()),
			zap.String("peer", peer),
			zap.Error(err),
		)
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return nil, fmt.Errorf("%w: %w", ErrSocketCreationFailed, errs)
}
