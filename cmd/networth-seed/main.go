package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"networth/internal/cli"
	"networth/internal/core"
	applog "networth/internal/log"
	"networth/internal/sections"
	"networth/internal/sections/memory"
)

// errDocumentExists is returned when a document is already stored and
// --force was not given.
var errDocumentExists = errors.New("a document already exists, use --force to replace it")

var force bool

var rootCmd = &cobra.Command{
	Use:   "networth-seed [document.json]",
	Short: "Writes an initial net worth document into the configured backend",
	Long: `Writes empty Assets and Liabilities sections, or the sections of the given
JSON file with every total recalculated, into the backend selected by
DATA_BACKEND.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSeed,
}

func init() {
	rootCmd.Flags().BoolVar(&force, "force", false, "Replace an existing document.")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "networth-seed:", err)
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.ShutdownContext(cmd.Context(), logger)
	defer cancel()

	result := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	written, err := seed(ctx, result.Store, path, force, result.Seeded)
	if err != nil {
		logger.Error("Seeding failed", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		return err
	}
	logger.Info("Document seeded", "sections", written, applog.FieldBackend, cfg.DataBackend)
	return nil
}

// seed writes the document from path, or the default sections when path is
// empty. An existing document is only replaced with force, unless fresh
// reports that it was just created by the backend itself.
func seed(ctx context.Context, store sections.Store, path string, force, fresh bool) (int, error) {
	all := memory.DefaultSections()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", path, err)
		}
		if all, err = sections.Decode(data); err != nil {
			return 0, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if fresh {
		return len(all), nil
	}

	if !force && !fresh {
		_, err := store.ReadAll(ctx)
		switch {
		case err == nil:
			return 0, errDocumentExists
		case !sections.IsNoData(err):
			return 0, fmt.Errorf("check existing document: %w", err)
		}
	}

	all = core.Recalculate(all)
	if err := store.SaveAll(ctx, all); err != nil {
		return 0, fmt.Errorf("save document: %w", err)
	}
	return len(all), nil
}
