package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/output"
	"github.com/sdejongh/foldersync/pkg/progress"
	"github.com/sdejongh/foldersync/pkg/sync"
)

var syncFlags SyncFlags

// NewSyncCommand creates the sync command
func NewSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize two folders",
		Long: `Synchronize files between source and destination directories.
Supports mirror and bidirectional modes with multiple comparison methods
and configurable conflict strategies.`,
		RunE: runSync,
	}
	addSyncFlags(cmd, &syncFlags)
	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	// A first interrupt cancels the run cleanly; a second kills the
	// process the usual way
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts, err := buildOptions(cmd, &syncFlags, cfg)
	if err != nil {
		return err
	}

	logger, err := buildLogger(&syncFlags, cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	if syncFlags.ResetState {
		if err := sync.ClearBaseline(opts.SourcePath, opts.DestPath); err != nil {
			return fmt.Errorf("failed to reset state: %w", err)
		}
	}

	showProgress := cfg.Output.Progress && !globalFlags.Quiet && outputFormat(&syncFlags, cfg) == "human"
	formatter, err := output.New(outputFormat(&syncFlags, cfg), showProgress)
	if err != nil {
		return err
	}

	emitter := progress.NewEmitter(1024)
	engine, err := sync.New(opts, logger, emitter)
	if err != nil {
		return err
	}

	var writer io.Writer = os.Stdout
	if globalFlags.Quiet {
		writer = io.Discard
	}
	engine.OnPlan = func(plan *models.SyncPlan) {
		formatter.Start(writer, plan)
	}

	consumeDone := make(chan struct{})
	go func() {
		defer close(consumeDone)
		output.Consume(formatter, emitter.Events())
	}()

	report, runErr := engine.Run(ctx)
	emitter.Close()
	<-consumeDone

	if runErr != nil {
		formatter.Error(runErr)
		return runErr
	}

	formatter.Complete(report, engine.Metrics())
	os.Exit(report.Status.ExitCode())
	return nil
}
