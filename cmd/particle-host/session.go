package main

import (
	"context"
	"fmt"
	"os"

	"github.com/wippyai/particle-runtime/host"
	"github.com/wippyai/particle-runtime/internal/entities"
	"github.com/wippyai/particle-runtime/wasmhost"
)

// session is a started runtime with its scenario runner.
type session struct {
	scenario *host.Scenario
	rt       *host.Runtime
	runner   *host.Runner
	engine   *wasmhost.Engine
	guest    *wasmhost.Guest
	path     string
}

// openSession loads the scenario at path, starts its particle, and returns
// the messages the particle sent during init.
func openSession(ctx context.Context, path string) (*session, []host.Message, error) {
	sc, err := host.LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	catalog := entities.Catalog()
	opts, err := sc.Options(catalog)
	if err != nil {
		return nil, nil, err
	}

	s := &session{scenario: sc, rt: host.New(opts), path: path}
	if err := s.start(ctx); err != nil {
		s.close(ctx)
		return nil, nil, err
	}
	s.runner = host.NewRunner(sc, s.rt, catalog)
	return s, s.rt.Drain(), nil
}

func (s *session) start(ctx context.Context) error {
	modulePath := s.scenario.ModulePath()
	if modulePath == "" {
		return s.rt.Start(ctx, s.scenario.Particle, s.scenario.Handles)
	}
	if s.scenario.Particle == "" {
		return fmt.Errorf("scenario %s loads a module but names no particle type", s.path)
	}

	wasmBytes, err := os.ReadFile(modulePath)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}
	s.engine = wasmhost.NewEngine(ctx, nil)
	s.guest, err = s.engine.Load(ctx, wasmBytes, wasmhost.Options{
		Host: s.rt,
		Type: s.scenario.Particle,
		ID:   s.rt.ID(),
	})
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}
	return s.rt.StartGuest(ctx, s.guest, s.scenario.Handles)
}

func (s *session) close(ctx context.Context) {
	if s.guest != nil {
		_ = s.guest.Close(ctx)
	}
	if s.engine != nil {
		_ = s.engine.Close(ctx)
	}
}

// source names what the session runs.
func (s *session) source() string {
	if s.scenario.Module != "" {
		return s.scenario.Particle + " (" + s.scenario.Module + ")"
	}
	return s.scenario.Particle
}
