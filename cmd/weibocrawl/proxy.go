package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var proxyTTL time.Duration

// proxyCmd represents the proxy command
var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Inspect and manage the proxy pool",
	Long: `Inspect and exercise the proxy pool.

The pool holds static proxies from the config file plus proxies fetched
on demand from the configured supply API. Dynamic entries expire after
the configured TTL; static entries added with a TTL of 0 never expire.`,
}

var proxyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pool size, capacity, and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient()
		if err != nil {
			return err
		}

		pool := client.Executor().Pool()
		fmt.Printf("Enabled:   %v\n", pool.Enabled())
		fmt.Printf("Size:      %d\n", pool.Size())
		fmt.Printf("Capacity:  %d\n", pool.Capacity())
		fmt.Printf("Strategy:  %s\n", cfg.Proxy.FetchStrategy)
		fmt.Printf("TTL:       %s\n", cfg.Proxy.DynamicTTL)
		if cfg.Proxy.APIURL != "" {
			fmt.Printf("Supply:    %s\n", cfg.Proxy.APIURL)
		} else {
			fmt.Println("Supply:    (none)")
		}
		return nil
	},
}

var proxyAcquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Acquire one proxy from the pool",
	Long: `Acquire one proxy the same way a crawl request would, replenishing
from the supply API when the pool is under capacity. Useful for checking
that a supply endpoint returns usable descriptors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		address, err := client.Executor().Pool().Acquire()
		if err != nil {
			return err
		}
		fmt.Println(address)
		return nil
	},
}

var proxyAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Add a static proxy and verify it is accepted",
	Example: `  # Add a proxy that never expires
  weibocrawl proxy add http://127.0.0.1:8888

  # Add a proxy with a 10 minute lifetime
  weibocrawl proxy add http://127.0.0.1:8888 --ttl 10m`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		if err := client.AddProxy(args[0], proxyTTL); err != nil {
			return err
		}
		fmt.Printf("Pool now holds %d proxies.\n", client.ProxyPoolSize())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.AddCommand(proxyStatusCmd)
	proxyCmd.AddCommand(proxyAcquireCmd)
	proxyCmd.AddCommand(proxyAddCmd)

	proxyAddCmd.Flags().DurationVar(&proxyTTL, "ttl", 0, "proxy lifetime (0 never expires)")
}
