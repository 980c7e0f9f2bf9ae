package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/swms-manager/internal/services"
)

func newMaintenanceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Run the server's scheduled jobs once",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	orphansCmd := &cobra.Command{
		Use:   "orphans",
		Short: "Count sign-offs whose document no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := a.documents()
			if err != nil {
				return err
			}
			n, err := docs.CountOrphanSignOffs(contextOf(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "orphaned sign-offs: %d\n", n)
			return nil
		},
	}

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Delete expired login sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}
			auth := services.NewAuthService(conn, a.cfg.Security, a.logger, a.metrics)
			n, err := auth.CleanupExpiredSessions(contextOf(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed sessions: %d\n", n)
			return nil
		},
	}

	cmd.AddCommand(orphansCmd, sessionsCmd)
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
