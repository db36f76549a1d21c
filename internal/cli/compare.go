package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sdejongh/foldersync/pkg/compare"
	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/storage"
)

var compareFlags struct {
	Comparison string
	Hash       string
	Tolerance  string
}

// NewCompareCommand creates the compare command
func NewCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <file1> <file2>",
		Short: "Compare two files",
		Long:  `Compare two files with the chosen method and report whether they match.`,
		Args:  cobra.ExactArgs(2),
		RunE:  runCompare,
	}
	cmd.Flags().StringVar(&compareFlags.Comparison, "comparison", "hash", "comparison method: size, sizetime, hash, binary, comprehensive")
	cmd.Flags().StringVar(&compareFlags.Hash, "hash", "xxh64", "hash algorithm: xxh64, sha256, md5")
	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := models.DefaultOptions()
	opts.Comparison = models.ComparisonMethod(compareFlags.Comparison)
	opts.Hash = models.HashAlgorithm(compareFlags.Hash)

	comparator, err := compare.New(opts, nil)
	if err != nil {
		return err
	}

	side1, entry1, err := openFile(args[0])
	if err != nil {
		return err
	}
	defer side1.Close()
	side2, entry2, err := openFile(args[1])
	if err != nil {
		return err
	}
	defer side2.Close()

	if entry1.Kind != entry2.Kind {
		fmt.Printf("%s different kinds: %s vs %s\n", color.RedString("✗"), entry1.Kind, entry2.Kind)
		os.Exit(1)
	}

	outcome, err := comparator.Compare(ctx, side1, side2, entry1, entry2)
	if err != nil {
		return err
	}

	if outcome.Equal {
		fmt.Printf("%s %s\n", color.GreenString("✓"), outcome.Reason)
		return nil
	}
	fmt.Printf("%s %s\n", color.RedString("✗"), outcome.Reason)
	os.Exit(1)
	return nil
}

// openFile roots a backend at the file's directory so the comparator
// can read it by relative path
func openFile(path string) (storage.Backend, *models.Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}
	backend, err := storage.NewLocal(filepath.Dir(abs))
	if err != nil {
		return nil, nil, err
	}
	entry, err := backend.Stat(context.Background(), filepath.Base(abs))
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("cannot access %s: %w", path, err)
	}
	return backend, entry, nil
}
