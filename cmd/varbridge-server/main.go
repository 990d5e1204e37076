/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"golang.org/x/sync/errgroup"

	"github.com/varbridge/varbridge/internal/config"
	"github.com/varbridge/varbridge/internal/log"
	"github.com/varbridge/varbridge/internal/observer"
	"github.com/varbridge/varbridge/internal/rpc"
	"github.com/varbridge/varbridge/internal/store"
	"github.com/varbridge/varbridge/internal/wsintrospect"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "varbridge-server: bad configuration: %v\n", err)
		os.Exit(1)
	}

	lg, err := log.NewStderrLogger("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "varbridge-server: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	lg = lg.WithComponent("server")
	if err := lg.SetLevel(cfg.LogLevel); err != nil {
		lg.Fatalf("bad log level: %v", err)
	}

	if err := run(cfg, lg); err != nil {
		lg.Fatalf("varbridge-server exiting: %v", err)
	}
}

func run(cfg config.Config, lg *log.Logger) error {
	watchers := observer.New(lg.WithComponent("observer"))
	st := store.New(
		store.WithNotifier(watchers),
		store.WithDefaultTTL(cfg.SessionDefaultTTL),
		store.WithLogger(lg.WithComponent("store")),
	)

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	auth := rpc.NewAuthInterceptor(cfg.JWTSecret)
	limiter := rpc.NewRateLimiter(cfg.SessionUpdateRateHz)

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(auth.Unary(), limiter.Unary()),
		grpc.ChainStreamInterceptor(auth.Stream()),
	)
	svc := rpc.New(st, watchers, lg.WithComponent("rpc"))
	srv.RegisterService(svc.ServiceDesc(), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return st.RunTTLSweeper(gctx, store.SweepInterval)
	})
	g.Go(func() error {
		watchers.RunSweeper(gctx, observer.DefaultSweepInterval)
		return nil
	})
	if cfg.IntrospectAddr != "" {
		introspect := wsintrospect.NewServer(watchers, st, lg.WithComponent("wsintrospect"))
		g.Go(func() error {
			return introspect.ListenAndServe(gctx, cfg.IntrospectAddr)
		})
	}
	g.Go(func() error {
		return serveGRPC(gctx, srv, lis)
	})

	// Worker-mode handshake: exactly one unbuffered line, after the
	// listening socket is already bound, per §6.
	port := lis.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(os.Stdout, "GRPC_READY:%d\n", port)
	os.Stdout.Sync()

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// shutdownGrace bounds how long serveGRPC waits for open streams (chiefly
// WatchVariables, which only exits on its own stream context) to drain
// after GracefulStop before forcing them closed. grpc.Server.GracefulStop
// stops accepting new RPCs but never cancels the context of an RPC already
// in flight, so without this a client parked in WatchVariables would hang
// the process past its SIGTERM indefinitely. A var, not a const, so tests
// can shrink it instead of waiting out the production value.
var shutdownGrace = 5 * time.Second

// serveGRPC runs srv until ctx is cancelled, at which point it performs
// §6's SIGTERM/SIGINT contract: stop accepting new RPCs, give in-flight
// streams shutdownGrace to finish or be cancelled by their caller, then
// force-close anything still open so the process exits within a bound.
func serveGRPC(ctx context.Context, srv *grpc.Server, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()
	select {
	case <-ctx.Done():
		boundedStop(srv.GracefulStop, srv.Stop, shutdownGrace)
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// boundedStop calls graceful and waits up to grace for it to return. If it
// hasn't returned by then, hard is called to force it to; hard is expected
// to make the still-running graceful call return soon after (e.g.
// grpc.Server.Stop force-closing the connections GracefulStop was waiting
// on), so boundedStop still waits for that return rather than racing past
// it, but it is no longer unbounded in practice.
func boundedStop(graceful, hard func(), grace time.Duration) {
	stopped := make(chan struct{})
	go func() {
		graceful()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(grace):
		hard()
		<-stopped
	}
}
