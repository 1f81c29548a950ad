package users

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zignal/zignalapi/cmd/cmdutil"
	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/pagination"
)

var (
	filterFlag string
	limitFlag  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles with their admin capabilities",
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

		views, total, err := bundle.Service.ListProfiles(ctx, filterFlag, pagination.New(1, limitFlag))
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tNAME\tADMIN\tPERMISSIONS\tDISABLED\tCREATED_AT")
		for _, v := range views {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%t\t%s\n",
				v.Profile.Email,
				v.Profile.Name,
				v.Admin.IsAdmin,
				strings.Join(v.Admin.Permissions, ","),
				v.Profile.Disabled(),
				v.Profile.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if total > len(views) {
			fmt.Fprintf(cmd.OutOrStdout(), "(%d of %d shown)\n", len(views), total)
		}
		return nil
	},
}
