package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/PrinceBashangezi/CS181NW-P2/state"
	"github.com/encodeous/tint"
	slogmulti "github.com/samber/slog-multi"
)

func buildLogger(topo *state.Topology, cfg state.LocalCfg, level slog.Level) (*slog.Logger, error) {
	handlers := []slog.Handler{
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			AddSource:    false,
			TimeFormat:   "15:04:05",
			CustomPrefix: fmt.Sprintf("server %d", topo.SelfId),
		}),
	}
	if cfg.LogPath != "" {
		if err := os.MkdirAll(path.Dir(cfg.LogPath), 0700); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0700)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// Start brings up the full daemon (engine, UDP socket, console) and
// blocks until shutdown.
func Start(topo *state.Topology, cfg state.LocalCfg, level slog.Level) error {
	logger, err := buildLogger(topo, cfg, level)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	dispatch := make(chan func(*state.State) error)

	s := &state.State{
		RouterState: state.NewRouterState(topo, time.Now()),
		Modules:     make(map[string]state.Module),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			Topology:        topo,
			Cfg:             cfg,
			Log:             logger,
		},
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range c {
			s.Cancel(errors.New("received shutdown signal"))
		}
	}()
	defer signal.Stop(c)

	s.Log.Info("starting", "self", topo.SelfId,
		"neighbours", len(topo.Neighbors), "interval", cfg.UpdateInterval())
	return Launch(s, []state.Module{&Router{}, &Sock{}, &Console{}}, dispatch)
}

// Launch initialises the given modules and runs the main loop until
// the context is cancelled. Split from Start so tests can wire their
// own module set.
func Launch(s *state.State, modules []state.Module, dispatch <-chan func(*state.State) error) error {
	if err := initModules(s, modules); err != nil {
		Stop(s)
		return err
	}
	return MainLoop(s, dispatch)
}

func initModules(s *state.State, modules []state.Module) error {
	for _, module := range modules {
		s.Modules[moduleName(module)] = module
	}
	for _, module := range modules {
		if err := module.Init(s); err != nil {
			return fmt.Errorf("init %s: %w", moduleName(module), err)
		}
	}
	return nil
}

func moduleName(m state.Module) string {
	return fmt.Sprintf("%T", m)
}

// MainLoop drains the dispatch queue on a single goroutine; all routing
// state mutation happens here.
func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch", "error", err)
				s.Cancel(err)
			}
			if elapsed := time.Since(start); elapsed > state.SlowDispatchThreshold {
				s.Log.Warn("dispatch took a long time!", "elapsed", elapsed)
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Info("stopped main loop", "reason", context.Cause(s.Context))
	Stop(s)
	return nil
}

// Stop tears the daemon down exactly once: cancels the context, closes
// the dispatch channel, and cleans up every module (which closes the
// socket and stops the listener).
func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	if s.DispatchChannel != nil {
		close(s.DispatchChannel)
	}
	s.Log.Info("cleaning up modules")
	for name, module := range s.Modules {
		if err := module.Cleanup(s); err != nil {
			s.Log.Error("error occurred during Stop", "module", name, "error", err)
		}
	}
	s.Log.Info("stopped")
}
