package users

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zignal/zignalapi/cmd/cmdutil"
	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/services/iam"
)

var setRoleCmd = &cobra.Command{
	Use:   "set-role",
	Short: "Grant or revoke the admin role",
	Long: `Stores the role in the profile metadata. Admins listed in ADMIN_EMAILS or
matching ADMIN_EMAIL_PATTERN stay admins regardless of the stored role.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" || roleFlag == "" {
			return fmt.Errorf("--email and --role are required")
		}

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

		profile, err := bundle.Service.GetProfileByEmail(ctx, strings.ToLower(strings.TrimSpace(emailFlag)))
		if err != nil {
			return fmt.Errorf("failed to find user %q: %w", emailFlag, err)
		}

		profile, err = bundle.Service.SetRole(ctx, profile.ID, roleFlag)
		if err != nil {
			return fmt.Errorf("failed to set role: %w", err)
		}

		view := bundle.Service.AdminView(iam.IdentityOf(profile))
		fmt.Fprintf(cmd.OutOrStdout(), "Role of %s set to %s (admin: %t)\n", profile.Email, roleFlag, view.IsAdmin)
		return nil
	},
}
