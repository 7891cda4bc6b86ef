package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/FormPulse/internal/api"
)

var importCmd = &cobra.Command{
	Use:   "import <snapshot.json>",
	Short: "Load forms, questions and responses from a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	store, err := openStore(cmd.Context(), cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := api.LoadSnapshot(args[0])
	if err != nil {
		return err
	}
	stats, err := api.ImportSnapshot(cmd.Context(), snap, store)
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d forms, %d questions, %d responses\n", stats.Forms, stats.Questions, stats.Responses)
	return nil
}

// SeedIfEmpty imports the snapshot at path into store on first start, that
// is when the store holds no forms yet. A missing snapshot file is not an
// error.
func SeedIfEmpty(ctx context.Context, store api.Store, path string, log *zap.Logger) error {
	if path == "" {
		return nil
	}
	n, err := store.CountForms(ctx)
	if err != nil {
		return fmt.Errorf("count forms: %w", err)
	}
	if n > 0 {
		return nil
	}
	snap, err := api.LoadSnapshot(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("seed snapshot not found", zap.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load seed snapshot: %w", err)
	}
	log.Info("empty store detected, importing seed snapshot", zap.String("path", path))
	stats, err := api.ImportSnapshot(ctx, snap, store)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	log.Info("seed snapshot imported",
		zap.Int("forms", stats.Forms), zap.Int("questions", stats.Questions), zap.Int("responses", stats.Responses))
	return nil
}
