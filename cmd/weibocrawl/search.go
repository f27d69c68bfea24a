package main

import (
	"github.com/spf13/cobra"

	"weibocrawl/pkg/weibo"
)

var (
	searchPage      int
	searchCount     int
	searchGender    string
	searchLocation  string
	searchEducation string
	searchCompany   string
	searchBirthday  string
	searchMinAge    int
	searchMaxAge    int
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search Weibo for users or posts",
}

var searchUsersCmd = &cobra.Command{
	Use:   "users <query>",
	Short: "Search for users by keyword",
	Long: `Search for users by keyword and print the matches as JSON.

Results can be narrowed with profile filters. Text filters (location,
education, company) match as case-insensitive substrings; age bounds are
derived from the profile birthday when it includes a year.`,
	Example: `  weibocrawl search users "央视新闻"

  weibocrawl search users photographer --page 2 --count 20

  # Only women in Beijing between 20 and 30
  weibocrawl search users photographer --gender f --location 北京 --min-age 20 --max-age 30`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		users, err := client.SearchUsers(args[0], searchPage, searchCount)
		if err != nil {
			return err
		}

		filtered, err := weibo.FilterUsers(users, weibo.FilterCriteria{
			Gender:    searchGender,
			Location:  searchLocation,
			Education: searchEducation,
			Company:   searchCompany,
			Birthday:  searchBirthday,
			MinAge:    searchMinAge,
			MaxAge:    searchMaxAge,
		})
		if err != nil {
			return err
		}
		return printJSON(filtered)
	},
}

var searchPostsCmd = &cobra.Command{
	Use:     "posts <query>",
	Short:   "Search for posts by keyword",
	Example: `  weibocrawl search posts "spring festival" --page 1`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		posts, err := client.SearchPosts(args[0], searchPage)
		if err != nil {
			return err
		}
		return printJSON(posts)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.AddCommand(searchUsersCmd)
	searchCmd.AddCommand(searchPostsCmd)

	searchCmd.PersistentFlags().IntVar(&searchPage, "page", 1, "result page to fetch")
	searchUsersCmd.Flags().IntVar(&searchCount, "count", 10, "results per page")
	searchUsersCmd.Flags().StringVar(&searchGender, "gender", "", "filter by gender (m or f)")
	searchUsersCmd.Flags().StringVar(&searchLocation, "location", "", "filter by location substring")
	searchUsersCmd.Flags().StringVar(&searchEducation, "education", "", "filter by education substring")
	searchUsersCmd.Flags().StringVar(&searchCompany, "company", "", "filter by company substring")
	searchUsersCmd.Flags().StringVar(&searchBirthday, "birthday", "", "filter by birthday substring")
	searchUsersCmd.Flags().IntVar(&searchMinAge, "min-age", 0, "minimum age (0 disables)")
	searchUsersCmd.Flags().IntVar(&searchMaxAge, "max-age", 0, "maximum age (0 disables)")
}
