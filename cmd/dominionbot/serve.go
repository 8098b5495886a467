package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/dominionbot/cmd/dominionbot/shared"
	"github.com/lox/dominionbot/internal/server"
	"github.com/lox/dominionbot/internal/session"
)

// ServeCmd runs the HTTP callback server.
type ServeCmd struct {
	Overrides `embed:""`

	Addr string `kong:"help='Listen address (overrides config)'"`
	Name string `kong:"help='Bot display name (overrides config)'"`
}

func (c *ServeCmd) Run() error {
	ctx := context.Background()
	a, err := c.build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Server.Address
	if c.Addr != "" {
		addr = c.Addr
	}
	name := a.cfg.Server.Name
	if c.Name != "" {
		name = c.Name
	}

	opts := []server.Option{
		server.WithName(name),
		server.WithDecisionSink(a.sink),
	}
	if a.creds != nil {
		opts = append(opts, server.WithCredentials(a.creds))
	}
	s := server.NewServer(a.logger, session.NewStore(nil), a.strategy, opts...)

	g, gctx := errgroup.WithContext(shared.SetupSignalHandlerWithLogger(a.logger))
	g.Go(func() error {
		return s.Start(addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
