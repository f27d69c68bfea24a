package main

import (
	"github.com/spf13/cobra"

	"weibocrawl/pkg/weibo"
)

var (
	postsPage   int
	postsPages  int
	postsExpand bool
)

// postsCmd represents the posts command
var postsCmd = &cobra.Command{
	Use:   "posts <uid>",
	Short: "Fetch a user's post timeline",
	Long: `Fetch pages of a user's post timeline and print them as JSON.

Page fetches are paced with randomized delays. With --expand, posts whose
text is truncated are completed through the post detail endpoint.`,
	Example: `  # First page of a timeline
  weibocrawl posts 1669879400

  # Three pages starting from page 2, with long posts expanded
  weibocrawl posts 1669879400 --page 2 --pages 3 --expand`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient()
		if err != nil {
			return err
		}

		var all []*weibo.Post
		for i := 0; i < postsPages; i++ {
			page := postsPage + i
			posts, err := client.GetUserPosts(args[0], page, postsExpand)
			if err != nil {
				return err
			}
			if len(posts) == 0 {
				break
			}
			all = append(all, posts...)

			if i < postsPages-1 {
				client.Executor().Pace(cfg.Pacing.PageInterval)
			}
		}
		return printJSON(all)
	},
}

func init() {
	rootCmd.AddCommand(postsCmd)

	postsCmd.Flags().IntVar(&postsPage, "page", 1, "first page to fetch")
	postsCmd.Flags().IntVar(&postsPages, "pages", 1, "number of pages to fetch")
	postsCmd.Flags().BoolVar(&postsExpand, "expand", false, "expand truncated long-text posts")
}
