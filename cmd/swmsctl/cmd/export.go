package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/swms-manager/internal/services"
	"github.com/swms-manager/internal/swms"
)

type exportFlags struct {
	outDir  string
	archive bool
}

func newExportCommand(a *app) *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export saved documents",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVarP(&flags.outDir, "out", "o", ".", "directory to write the file into")
	cmd.PersistentFlags().BoolVar(&flags.archive, "archive", false, "also store a copy in the configured archive")

	pdfCmd := &cobra.Command{
		Use:   "pdf <document-id>",
		Short: "Export a document with its sign-offs as a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, a, flags, args[0], func(ctx context.Context, es *services.ExportService, company swms.Company) (services.Export, error) {
				return es.DocumentPDF(ctx, company, args[0])
			})
		},
	}

	var format string
	posterCmd := &cobra.Command{
		Use:   "poster <document-id>",
		Short: "Export the QR sign-off poster for a document",
		Long: `Export the printable QR sign-off poster for a document.

Examples:
  swmsctl export poster 3f2c... --format png
  swmsctl export poster 3f2c... --format pdf -o /tmp`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, a, flags, args[0], func(ctx context.Context, es *services.ExportService, company swms.Company) (services.Export, error) {
				return es.Poster(ctx, company, args[0], services.PosterFormat(format))
			})
		},
	}
	posterCmd.Flags().StringVarP(&format, "format", "f", string(services.PosterPNG), "poster format: png or pdf")

	cmd.AddCommand(pdfCmd, posterCmd)
	return cmd
}

func runExport(cmd *cobra.Command, a *app, flags exportFlags, id string,
	render func(context.Context, *services.ExportService, swms.Company) (services.Export, error)) error {
	ctx := contextOf(cmd)
	es, companies, err := a.exports(ctx)
	if err != nil {
		return err
	}
	docs, err := a.documents()
	if err != nil {
		return err
	}
	doc, err := docs.FindDocument(ctx, id)
	if err != nil {
		return err
	}
	company, err := companies.Get(ctx, doc.CompanyID)
	if err != nil {
		return err
	}

	exp, err := render(ctx, es, company)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(flags.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(flags.outDir, exp.FileName)
	if err := os.WriteFile(path, exp.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(exp.Data))

	if flags.archive {
		loc, err := es.Archive(ctx, company.ID, exp)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "archived to %s\n", loc)
	}
	return nil
}
