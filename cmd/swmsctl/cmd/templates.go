package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/swms-manager/internal/swms"
)

func newTemplatesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect the job step template catalog",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	var category string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List job step templates",
		Long: `List the job step templates in the active catalog. The catalog is the
built-in one unless catalog.path is configured.

Examples:
  swmsctl templates list
  swmsctl templates list --category "High Risk"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.catalog()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tCATEGORY\tNAME\tINITIAL\tRESIDUAL")
			for _, t := range c.List() {
				if category != "" && !strings.EqualFold(t.Category, category) {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Key, t.Category, t.Name,
					swms.LookupRisk(t.InitialRisk).Label, swms.LookupRisk(t.ResidualRisk).Label)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&category, "category", "", "only show templates in this category")

	categoriesCmd := &cobra.Command{
		Use:   "categories",
		Short: "List template categories with their template counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.catalog()
			if err != nil {
				return err
			}
			for _, cat := range c.Categories() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d)\n", cat.Name, len(cat.Templates))
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd, categoriesCmd)
	return cmd
}
