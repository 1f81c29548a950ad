package sessions

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zignal/zignalapi/cmd/cmdutil"
	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/jobs"
)

// SessionsCmd is the parent command for database session maintenance
var SessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Maintain database sessions",
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired database sessions",
	Long:  `Runs the session janitor once. The server runs the same job on JANITOR_SCHEDULE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := cmd.Context()
		bundle, err := cmdutil.NewIAMServiceBundle(ctx, cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		janitor, err := jobs.NewJanitor(bundle.Sessions, cfg.JanitorSchedule, slog.Default())
		if err != nil {
			return err
		}
		n, err := janitor.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired session(s)\n", n)
		return nil
	},
}

func init() {
	SessionsCmd.AddCommand(pruneCmd)
}
