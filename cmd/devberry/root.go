package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blockberries/devberry/devnet"
	"github.com/blockberries/devberry/engine"
	"github.com/blockberries/devberry/types"
	"github.com/blockberries/devberry/wal"
)

const watchInterval = 100 * time.Millisecond

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "devberry",
		Short:        "Run devmode consensus on an in-process validator network",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}
	addFlags(cmd)
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the consensus engine name and version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", engine.EngineName, engine.EngineVersion)
		},
	}
}

type node struct {
	engine    *engine.Engine
	validator *devnet.Validator
}

// run starts one engine per validator and blocks until the block limit is
// reached, ctx is cancelled, or an engine fails
func run(ctx context.Context, cfg *nodeConfig, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	nodes, closeNodes, err := newNodes(cfg, reg, logger)
	if err != nil {
		return err
	}
	defer closeNodes()

	return supervise(ctx, cfg, reg, nodes, logger)
}

// newNodes builds the validator network and one engine per validator. The
// returned function closes the validators and their block logs.
func newNodes(cfg *nodeConfig, reg *prometheus.Registry, logger *zap.Logger) ([]node, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	net := devnet.NewNetwork()
	nodes := make([]node, cfg.Nodes)
	for i := range nodes {
		id := types.PeerID{byte(i + 1)}
		vcfg := devnet.Config{LocalID: id, Settings: cfg.settings()}
		if cfg.DataDir != "" {
			log, err := wal.Open(filepath.Join(cfg.DataDir, fmt.Sprintf("node-%s", id)))
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, func() { _ = log.Close() })
			vcfg.Log = log
		}

		v := devnet.NewValidator(vcfg, logger)
		closers = append(closers, v.Close)
		if err := net.Join(v); err != nil {
			closeAll()
			return nil, nil, err
		}
		metrics := engine.NewMetrics(prometheus.WrapRegistererWith(prometheus.Labels{"node": v.ID().String()}, reg))
		nodes[i] = node{
			engine:    engine.NewEngine(cfg.engineConfig(), logger.With(zap.Stringer("node", v.ID())), metrics),
			validator: v,
		}
	}
	logger.Info("network ready", zap.Int("validators", len(net.Validators())))
	return nodes, closeAll, nil
}

// supervise runs the engines, the block limit watcher and the metrics server.
// The first engine failure cancels the rest.
func supervise(ctx context.Context, cfg *nodeConfig, reg *prometheus.Registry, nodes []node, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(context.Background())
	done := make(chan struct{})

	var running sync.WaitGroup
	for _, n := range nodes {
		startup := n.validator.StartupState()
		running.Add(1)
		g.Go(func() error {
			defer running.Done()
			if err := n.engine.Start(gctx, n.validator.Updates(), n.validator, startup); err != nil {
				return fmt.Errorf("node %s: %w", n.validator.ID(), err)
			}
			return nil
		})
	}
	g.Go(func() error {
		running.Wait()
		close(done)
		return nil
	})

	g.Go(func() error {
		return watch(ctx, gctx, done, cfg.Blocks, nodes, logger)
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-done:
			case <-gctx.Done():
			}
			return srv.Shutdown(context.Background())
		})
	}

	err := g.Wait()
	head := nodes[0].validator.Head()
	logger.Info("stopped", zap.Uint64("height", head.BlockNum), zap.Stringer("head", head.ID))
	return err
}

// watch shuts the network down once the first node reaches the block limit,
// ctx is cancelled, or an engine fails and cancels gctx
func watch(ctx, gctx context.Context, done <-chan struct{}, limit uint64, nodes []node, logger *zap.Logger) error {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	shutdown := func() {
		for _, n := range nodes {
			n.validator.Shutdown()
		}
	}

	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			logger.Info("interrupted, shutting down")
			shutdown()
			return nil
		case <-gctx.Done():
			logger.Error("engine failed, shutting down")
			shutdown()
			return nil
		case <-ticker.C:
			if limit == 0 {
				continue
			}
			if h := nodes[0].validator.Head().BlockNum; h >= limit {
				logger.Info("block limit reached", zap.Uint64("height", h))
				shutdown()
				return nil
			}
		}
	}
}
