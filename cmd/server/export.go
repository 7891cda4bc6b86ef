package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/FormPulse/internal/services"
)

var exportFlags struct {
	formID string
	owner  string
	format string
	out    string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a form's responses as CSV, JSON or XLSX",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.formID, "form", "", "form id (required)")
	f.StringVar(&exportFlags.owner, "owner", "", "owner id; defaults to the form's owner")
	f.StringVar(&exportFlags.format, "format", services.FormatCSV, "csv, json or xlsx")
	f.StringVarP(&exportFlags.out, "out", "o", "", "output file; defaults to the export's own filename")
	_ = exportCmd.MarkFlagRequired("form")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	owner := exportFlags.owner
	if owner == "" {
		form, err := store.GetForm(ctx, exportFlags.formID)
		if err != nil {
			return err
		}
		if form == nil {
			return fmt.Errorf("form %s not found", exportFlags.formID)
		}
		owner = form.OwnerID
	}
	res, err := services.NewExportService(store).Export(ctx, services.ExportParams{
		OwnerID: owner,
		FormID:  exportFlags.formID,
		Format:  exportFlags.format,
	})
	if err != nil {
		return err
	}
	out := exportFlags.out
	if out == "" {
		out = res.Filename
	}
	if out == "-" {
		_, err = cmd.OutOrStdout().Write(res.Data)
		return err
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", out, len(res.Data))
	return nil
}
