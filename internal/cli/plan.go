package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/output"
	"github.com/sdejongh/foldersync/pkg/sync"
)

var (
	planFlags SyncFlags
	planOnly  []string
)

// NewPlanCommand creates the plan command
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a sync would do without changing anything",
		Long: `Scan both sides, build the action plan, and print it. Nothing is
modified; the same flags as the sync command control what gets planned.`,
		RunE: runPlan,
	}
	addSyncFlags(cmd, &planFlags)
	cmd.Flags().StringSliceVar(&planOnly, "only", nil, "show only these action kinds: copy, update, delete, conflict, skip")
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts, err := buildOptions(cmd, &planFlags, cfg)
	if err != nil {
		return err
	}
	opts.DryRun = true

	logger, err := buildLogger(&planFlags, cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	engine, err := sync.New(opts, logger, nil)
	if err != nil {
		return err
	}

	plan, err := engine.Plan(ctx)
	if err != nil {
		return err
	}

	if outputFormat(&planFlags, cfg) == "json" {
		return output.WritePlanJSON(os.Stdout, plan)
	}

	only := make([]models.ActionKind, 0, len(planOnly))
	for _, name := range planOnly {
		switch kind := models.ActionKind(name); kind {
		case models.ActionCopy, models.ActionUpdate, models.ActionDelete,
			models.ActionConflict, models.ActionSkip:
			only = append(only, kind)
		default:
			return fmt.Errorf("unknown action kind %q", name)
		}
	}
	return output.WritePlan(os.Stdout, plan, only)
}
