package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"weibocrawl/pkg/config"
)

var configForce bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with default values",
	Long: `Write a starter config file populated with the default values. The
file documents every knob: proxy pool, retry and backoff windows, pacing,
and download behavior.`,
	Example: `  # Write ./weibocrawl.yaml
  weibocrawl config init

  # Write to an explicit location
  weibocrawl config init ~/.config/weibocrawl/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "weibocrawl.yaml"
		if len(args) > 0 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		cfg := config.DefaultConfig()
		if err := cfg.SaveToFile(path); err != nil {
			return err
		}

		abs, _ := filepath.Abs(path)
		fmt.Printf("Wrote default configuration to %s\n", abs)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after layering the config file, environment
variables, and flags, exactly as the crawler would see it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// Never print the session cookie.
		display := *cfg
		if display.Weibo.Cookie != "" {
			display.Weibo.Cookie = "(set)"
		}

		data, err := yaml.Marshal(&display)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
}
