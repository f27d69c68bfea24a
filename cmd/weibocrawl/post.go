package main

import (
	"github.com/spf13/cobra"
)

// postCmd represents the post command
var postCmd = &cobra.Command{
	Use:   "post <bid>",
	Short: "Fetch a single post by its bid",
	Long: `Fetch one post's full detail by its bid (the alphanumeric id in the
post URL) and print it as JSON. The detail endpoint returns the complete
text for long posts.`,
	Example: `  weibocrawl post KzWv8pHga`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		post, err := client.GetPostByBid(args[0])
		if err != nil {
			return err
		}
		return printJSON(post)
	},
}

func init() {
	rootCmd.AddCommand(postCmd)
}
