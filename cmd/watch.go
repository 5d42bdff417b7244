package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/linkwatch/cli"
	"github.com/grovetools/linkwatch/config"
	"github.com/grovetools/linkwatch/internal/coordinator"
	"github.com/grovetools/linkwatch/internal/pidfile"
	"github.com/grovetools/linkwatch/internal/projectwatch"
	"github.com/grovetools/linkwatch/internal/status"
	"github.com/grovetools/linkwatch/logging"
	"github.com/grovetools/linkwatch/pkg/host"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the `watch` command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch symlinked directories and mark projects for recompile",
		Long: `Runs until interrupted. Every active project is rescanned at startup,
whenever linkwatch.yml changes and on SIGHUP (a new editor session).
Each change to a matching file below a symlinked directory marks the
project's runtime server content and tool addon compilers.

Examples:
  # Watch with the nearest linkwatch.yml
  linkwatch watch

  # Coalesce bursts of saves into one recompile
  linkwatch watch --debounce 250`,
		RunE: runWatchE,
	}

	cmd.Flags().Int("debounce", -1, "Quiet period in milliseconds before a recompile fires (overrides watch.debounce_ms)")
	cmd.Flags().Bool("no-log-file", false, "Do not write the watch log file")
	return cmd
}

func runWatchE(cmd *cobra.Command, args []string) error {
	logger := cli.GetLogger(cmd, "watch")

	cfg, cfgPath, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}

	if noFile, _ := cmd.Flags().GetBool("no-log-file"); !noFile {
		logPath := logging.LogFilePath("watch")
		closer, err := logging.AddFileSink(logger, logPath)
		if err != nil {
			logger.WithError(err).Warnf("Failed to open log file %s", logPath)
		} else {
			defer closer.Close()
		}
	}

	pidPath := pidfile.DefaultPath()
	if err := pidfile.Acquire(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.WithError(err).Debug("Failed to remove pid file")
		}
	}()

	debounce, _ := cmd.Flags().GetInt("debounce")
	opts, err := coordinatorOptions(cfg, debounce)
	if err != nil {
		return err
	}

	h := host.NewStatic(cfg, logger)
	coord := coordinator.New(h, opts, logger)

	statusPath := status.DefaultPath()
	coord.OnRescan(func(t coordinator.Trigger, projects []coordinator.ProjectState) {
		err := status.Save(statusPath, status.Status{
			PID:       os.Getpid(),
			Config:    cfgPath,
			Trigger:   string(t),
			UpdatedAt: time.Now(),
			Projects:  projects,
		})
		if err != nil {
			logger.WithError(err).Debug("Failed to write status file")
		}
	})
	defer status.Remove(statusPath)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reload := func() {
		next, err := config.Load(cfgPath)
		if err != nil {
			logger.WithError(err).Warn("Keeping previous config")
			return
		}
		nextOpts, err := coordinatorOptions(next, debounce)
		if err != nil {
			logger.WithError(err).Warn("Keeping previous config")
			return
		}
		h.Reload(next)
		coord.SetOptions(nextOpts)
		coord.Notify(coordinator.TriggerProjectsChanged)
	}

	if cw, err := newConfigWatcher(cfgPath, logger, reload); err != nil {
		logger.WithError(err).Warnf("Not watching %s for changes", cfgPath)
	} else {
		go cw.Start(ctx)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				coord.Notify(coordinator.TriggerSessionStarted)
			}
		}
	}()

	logger.Infof("Using config %s", cfgPath)
	err = coord.Run(ctx)
	h.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func coordinatorOptions(cfg *config.Config, debounceOverride int) (coordinator.Options, error) {
	watch, err := projectwatch.OptionsFromConfig(cfg.Watch)
	if err != nil {
		return coordinator.Options{}, err
	}
	if debounceOverride >= 0 {
		override := cfg.Watch
		override.DebounceMs = debounceOverride
		watch.Debounce = override.Debounce()
	}
	return coordinator.Options{
		Watch:   watch,
		Workers: cfg.Watch.Workers,
	}, nil
}
