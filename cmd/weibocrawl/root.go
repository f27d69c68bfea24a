package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"weibocrawl/pkg/auth"
	"weibocrawl/pkg/config"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/weibo"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	accountName string
	cookie      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "weibocrawl",
	Short: "A Weibo data collection client with proxy rotation and retry handling",
	Long: `weibocrawl crawls the Weibo mobile API (m.weibo.cn) for user profiles,
post timelines, search results, and post images.

Features:
  - Proxy pool with static and dynamically fetched proxies
  - Automatic retry with randomized backoff on rate limits and failures
  - Request pacing to stay under the anti-crawler radar
  - Resume interrupted image downloads from checkpoints
  - Secure cookie storage using the system keychain`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./weibocrawl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "", "use a specific stored cookie account")
	rootCmd.PersistentFlags().StringVar(&cookie, "cookie", "", "session cookie for this run")

	rootCmd.SetVersionTemplate(`weibocrawl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig layers the config file, environment, flags, and any stored
// cookie account, then installs the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if cookie != "" {
		cfg.Weibo.Cookie = cookie
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)

	if cfg.Weibo.Cookie == "" {
		applyStoredCookie(cfg, log)
	}

	return cfg, nil
}

// applyStoredCookie fills the session cookie from the credential stores.
// Missing credentials are fine; the API serves anonymous traffic too.
func applyStoredCookie(cfg *config.Config, log logger.Logger) {
	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("credential manager unavailable")
		return
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			log.WarnWithFields("stored account not found", map[string]interface{}{
				"account": accountName,
			})
			return
		}
	} else {
		account, err = manager.RetrieveDefault()
		if err != nil {
			return
		}
	}

	cfg.Weibo.Cookie = account.Cookie
	if account.UserAgent != "" {
		cfg.Weibo.UserAgent = account.UserAgent
	}
	log.InfoWithFields("using stored cookie", map[string]interface{}{
		"account": account.Name,
	})
}

// newClient builds a configured client ready to crawl.
func newClient() (*weibo.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	client, err := weibo.NewClient(cfg, logger.GetLogger())
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
