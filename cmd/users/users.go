package users

import "github.com/spf13/cobra"

// UsersCmd is the parent command for profile management operations
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage local profiles",
	Long:  `Commands for managing profiles and admin roles directly from the server.`,
}

func init() {
	createCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the user")
	createCmd.Flags().StringVar(&nameFlag, "name", "", "Display name of the user")
	createCmd.Flags().StringVar(&passwordFlag, "password", "", "Password for the user (use --stdin to avoid shell history)")
	createCmd.Flags().StringVar(&roleFlag, "role", "member", "Role to assign: admin or member")
	createCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")

	setRoleCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the user")
	setRoleCmd.Flags().StringVar(&roleFlag, "role", "", "Role to assign: admin or member")

	listCmd.Flags().StringVar(&filterFlag, "filter", "", `go-bexpr filter, e.g. 'isAdmin == true'`)
	listCmd.Flags().IntVar(&limitFlag, "limit", 50, "Maximum number of profiles to print")

	UsersCmd.AddCommand(createCmd, setRoleCmd, listCmd)
}
