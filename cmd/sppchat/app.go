package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sppchat/internal/bridge"
	"sppchat/internal/config"
	"sppchat/internal/hub"
	"sppchat/internal/link"
)

// app wires one link.Manager to the hub and the optional bridge. It
// implements the Controller interfaces of tui and bridge so that every
// front end shares the connect timeout and the remembered peer.
type app struct {
	cfg *config.Config
	log *zap.Logger
	mgr *link.Manager
	hub *hub.Hub

	hubDone chan struct{}
	srv     *http.Server
	ln      net.Listener

	mu       sync.Mutex
	lastPeer string
	timer    *time.Timer
}

func newApp(cfg *config.Config, log *zap.Logger, strategies []link.Strategy) *app {
	mgr := link.New(link.Options{
		Factory:        link.NewFallback(log, strategies...),
		ReadBufferSize: cfg.ReadBufferSize,
		Log:            log,
	})
	a := &app{
		cfg:     cfg,
		log:     log,
		mgr:     mgr,
		hub:     hub.New(log),
		hubDone: make(chan struct{}),
	}
	go func() {
		defer close(a.hubDone)
		a.hub.Run(mgr.Events())
	}()
	return a
}

// start brings up the bridge listener, if configured, and the radio watcher.
func (a *app) start(ctx context.Context, watch func(context.Context, *app)) error {
	if a.cfg.Listen != "" {
		ln, err := net.Listen("tcp", a.cfg.Listen)
		if err != nil {
			return fmt.Errorf("bridge: listen %s: %w", a.cfg.Listen, err)
		}
		a.ln = ln
		a.srv = &http.Server{
			Handler:           bridge.NewRouter(a, a.hub, a.log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		a.log.Info("bridge listening", zap.String("addr", ln.Addr().String()))
		go func() {
			if err := a.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("bridge: serve", zap.Error(err))
			}
		}()
	}
	if watch != nil {
		watch(ctx, a)
	}
	return nil
}

// addr is the bridge's listening address, or nil.
func (a *app) addr() net.Addr {
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// Connect starts a connection and arms the connect timeout.
func (a *app) Connect(peer string) error {
	if err := a.mgr.Connect(peer); err != nil {
		return err
	}
	p, _ := link.ParsePeer(peer)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastPeer = p
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if d := a.cfg.ConnectTimeout; d > 0 {
		a.timer = time.AfterFunc(d, func() { a.abandon(p, d) })
	}
	return nil
}

// abandon disconnects if the attempt to peer is still in progress.
func (a *app) abandon(peer string, after time.Duration) {
	if a.mgr.State() != link.Connecting || a.mgr.Peer() != peer {
		return
	}
	a.log.Warn("connect timed out", zap.String("peer", peer), zap.Duration("after", after))
	if err := a.mgr.Disconnect(); err != nil {
		a.log.Warn("disconnect after timeout", zap.Error(err))
	}
}

func (a *app) Send(text string) error { return a.mgr.Send(text) }
func (a *app) Disconnect() error      { return a.mgr.Disconnect() }
func (a *app) State() link.State      { return a.mgr.State() }
func (a *app) Peer() string           { return a.mgr.Peer() }

// radioChanged reacts to the adapter being switched off or on.
func (a *app) radioChanged(powered bool) {
	if !powered {
		a.log.Info("adapter powered off")
		a.mgr.OnRadioDisabled()
		return
	}
	a.log.Info("adapter powered on")
	if !a.cfg.ReconnectOnRadioOn || a.mgr.State() != link.Disconnected {
		return
	}
	a.mu.Lock()
	peer := a.lastPeer
	a.mu.Unlock()
	if peer == "" {
		return
	}
	if err := a.Connect(peer); err != nil {
		a.log.Warn("reconnect", zap.String("peer", peer), zap.Error(err))
	}
}

// close disconnects, ends the event stream and stops the bridge.
func (a *app) close() error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()

	err := a.mgr.Close()
	<-a.hubDone
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = multierr.Append(err, a.srv.Shutdown(ctx))
	}
	return err
}

// setup loads the logger and strategies and builds the app for one mode.
func (o *rootOptions) setup(ctx context.Context, interactive bool) (*app, *zap.Logger, error) {
	log, err := o.logger(interactive)
	if err != nil {
		return nil, nil, err
	}
	strategies, err := o.newStrategies(o.cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	a := newApp(o.cfg, log, strategies)
	if err := a.start(ctx, o.watchRadio); err != nil {
		_ = a.close()
		_ = log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}
