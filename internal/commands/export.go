package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/openlets/openlets/internal/export"
	"github.com/openlets/openlets/internal/ledger"
)

func newExportCommand(configPath *string) *cobra.Command {
	var (
		personID int64
		siteID   int64
		format   string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a person's balances and transfer history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "csv" {
				return fmt.Errorf("unknown format %q (want json or csv)", format)
			}

			a, err := openApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := a.service()
			if _, err := svc.PersonByID(cmd.Context(), personID); err != nil {
				return err
			}
			if siteID == 0 {
				siteID = a.cfg.Ledger.DefaultSiteID
			}
			doc, err := export.Build(cmd.Context(), svc, ledger.Actor{PersonID: personID, SiteID: siteID})
			if err != nil {
				return fmt.Errorf("building export: %w", err)
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return writeExport(w, doc, format)
		},
	}

	cmd.Flags().Int64Var(&personID, "person", 0, "person id to export (required)")
	_ = cmd.MarkFlagRequired("person")
	cmd.Flags().Int64Var(&siteID, "site", 0, "site id (defaults to ledger.default_site_id)")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func writeExport(w io.Writer, doc *export.Document, format string) error {
	if format == "csv" {
		return export.WriteCSV(w, doc)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return nil
}
