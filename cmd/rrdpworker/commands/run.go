package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/rrdpworker/internal/logger"
	"github.com/marmos91/rrdpworker/internal/rrdp"
	"github.com/marmos91/rrdpworker/internal/telemetry"
	"github.com/marmos91/rrdpworker/internal/wire"
	"github.com/marmos91/rrdpworker/pkg/config"
	"github.com/marmos91/rrdpworker/pkg/metrics"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the RRDP engine against the configured control channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context())
		},
	}
}

// runEngine is the bootstrap sequence: config, then logger, then telemetry,
// then profiling, then the metrics server, then the engine's poll loop.
func runEngine(ctx context.Context) error {
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "rrdpworker",
		ServiceVersion: "dev",
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "rrdpworker",
		ServiceVersion: "dev",
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("initializing profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown failed", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	conn, err := controlConn(cfg.Engine.ControlFD)
	if err != nil {
		return fmt.Errorf("attaching control channel: %w", err)
	}
	defer conn.Close()

	logger.Info("rrdpworker engine starting",
		"control_fd", cfg.Engine.ControlFD,
		"concurrency", cfg.Engine.Concurrency,
		"read_buffer_size", cfg.Engine.ReadBufferSize.String(),
	)

	engine := rrdp.NewEngine(conn, rrdp.EngineConfig{
		Concurrency:    cfg.Engine.Concurrency,
		ReadBufferSize: cfg.Engine.ReadBufferSize,
	})

	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("engine stopped: %w", err)
	}

	logger.Info("rrdpworker engine stopped")
	return nil
}

// controlConn adapts the parent-supplied control channel file descriptor
// (inherited, typically via exec.Cmd.ExtraFiles) into a wire.Conn.
func controlConn(fd int) (*wire.Conn, error) {
	f := os.NewFile(uintptr(fd), "control")
	if f == nil {
		return nil, fmt.Errorf("invalid control fd %d", fd)
	}

	c, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("wrapping control fd %d: %w", fd, err)
	}
	_ = f.Close() // FileConn dup'd the descriptor; the original is no longer needed.

	uc, ok := c.(*net.UnixConn)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("control fd %d is not a unix socket", fd)
	}

	return wire.NewConn(uc), nil
}
