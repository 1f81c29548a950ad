package users

import (
	"bufio"
	"fmt"
	"net/mail"
	"os"

	"github.com/spf13/cobra"

	"github.com/zignal/zignalapi/cmd/cmdutil"
	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/services/iam"
)

var (
	emailFlag    string
	nameFlag     string
	passwordFlag string
	roleFlag     string
	stdinFlag    bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a profile with local credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		if _, err := mail.ParseAddress(emailFlag); err != nil {
			return fmt.Errorf("invalid email format: %w", err)
		}

		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
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

		if existing, err := bundle.Service.GetProfileByEmail(ctx, emailFlag); err == nil && existing != nil {
			return fmt.Errorf("user with email %q already exists", emailFlag)
		}

		profile, err := bundle.Service.CreateProfile(ctx, iam.CreateProfileRequest{
			Email:    emailFlag,
			Name:     nameFlag,
			Password: password,
			Role:     roleFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		view := bundle.Service.AdminView(iam.IdentityOf(profile))
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "User created successfully!")
		fmt.Fprintln(out, "----------------------------------------")
		fmt.Fprintf(out, "User ID: %s\n", profile.ID)
		fmt.Fprintf(out, "Email: %s\n", profile.Email)
		fmt.Fprintf(out, "Name: %s\n", profile.Name)
		fmt.Fprintf(out, "Admin: %t\n", view.IsAdmin)
		fmt.Fprintln(out, "----------------------------------------")
		return nil
	},
}
