package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"weibocrawl/pkg/checkpoint"
	"weibocrawl/pkg/logger"
)

var (
	imagesPages   int
	imagesOutput  string
	imagesExpand  bool
	imagesResume  bool
	imagesRestart bool
)

// imagesCmd represents the images command
var imagesCmd = &cobra.Command{
	Use:   "images <uid>",
	Short: "Download all images from a user's posts",
	Long: `Walk a user's post timeline and download every image into a per-user
directory. Progress is checkpointed after each page so an interrupted
run can pick up where it left off with --resume.

Downloads are paced between pages and between individual images, and a
token bucket caps overall download throughput.`,
	Example: `  # Download images from the first 5 pages
  weibocrawl images 1669879400 --pages 5

  # Resume an interrupted download
  weibocrawl images 1669879400 --pages 5 --resume

  # Start over, ignoring the existing checkpoint
  weibocrawl images 1669879400 --pages 5 --force-restart`,
	Args: cobra.ExactArgs(1),
	RunE: runImages,
}

func init() {
	rootCmd.AddCommand(imagesCmd)

	imagesCmd.Flags().IntVar(&imagesPages, "pages", 1, "number of timeline pages to walk")
	imagesCmd.Flags().StringVarP(&imagesOutput, "output", "o", "", "download directory (default from config)")
	imagesCmd.Flags().BoolVar(&imagesExpand, "expand", false, "expand truncated long-text posts before downloading")
	imagesCmd.Flags().BoolVar(&imagesResume, "resume", false, "resume from the last checkpoint")
	imagesCmd.Flags().BoolVar(&imagesRestart, "force-restart", false, "ignore any existing checkpoint and start over")
}

func runImages(cmd *cobra.Command, args []string) error {
	uid := args[0]

	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	dir := imagesOutput
	if dir == "" {
		dir = cfg.Download.Directory
	}

	cpManager, err := checkpoint.NewManager(uid)
	if err != nil {
		return err
	}

	if imagesRestart {
		if err := cpManager.Delete(); err != nil {
			return err
		}
	}

	var cp *checkpoint.Checkpoint
	if imagesResume && !imagesRestart {
		cp, err = cpManager.Load()
		if err != nil {
			return err
		}
	}
	if cp == nil {
		cp, err = cpManager.Create(uid)
		if err != nil {
			return err
		}
	}

	startPage := cp.LastFetchedPage + 1
	if startPage > imagesPages {
		fmt.Printf("Nothing to do: checkpoint already covers %d pages.\n", cp.LastFetchedPage)
		return nil
	}

	client.WarmUp()

	var totalNew int
	for page := startPage; page <= imagesPages; page++ {
		posts, err := client.GetUserPosts(uid, page, imagesExpand)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			log.InfoWithFields("timeline exhausted", map[string]interface{}{
				"uid":  uid,
				"page": page,
			})
			break
		}

		if cp.ScreenName == "" && posts[0].User != nil {
			cp.ScreenName = posts[0].User.ScreenName
		}

		results, err := client.DownloadPostsImages(posts, dir, "user_"+uid)
		if err != nil {
			return err
		}

		pageDownloads := make(map[string]string)
		for _, byURL := range results {
			for url, path := range byURL {
				pageDownloads[url] = path
				if path != "" {
					totalNew++
				}
			}
		}

		if err := cpManager.RecordPage(cp, page, pageDownloads); err != nil {
			return err
		}

		if page < imagesPages {
			client.Executor().Pace(cfg.Pacing.PageInterval)
		}
	}

	if err := cpManager.Delete(); err != nil {
		log.WithError(err).Warn("failed to remove completed checkpoint")
	}

	fmt.Printf("Done. %d images downloaded, %d total on record.\n", totalNew, cp.TotalDownloaded)
	return nil
}
