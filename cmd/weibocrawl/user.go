package main

import (
	"github.com/spf13/cobra"
)

// userCmd represents the user command
var userCmd = &cobra.Command{
	Use:   "user <uid>",
	Short: "Fetch a user profile by uid",
	Long: `Fetch a Weibo user's profile by their numeric uid and print it as JSON.

The profile includes screen name, follower counts, verification status,
and the extended fields (birthday, education, company) when the profile
exposes them.`,
	Example: `  # Fetch a profile
  weibocrawl user 1669879400

  # Fetch through a stored cookie account
  weibocrawl user 1669879400 --account main`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		user, err := client.GetUserByUID(args[0])
		if err != nil {
			return err
		}
		return printJSON(user)
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
}
