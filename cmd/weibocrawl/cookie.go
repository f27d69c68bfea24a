package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"weibocrawl/pkg/auth"
)

// cookieCmd represents the cookie command
var cookieCmd = &cobra.Command{
	Use:   "cookie",
	Short: "Manage stored Weibo session cookies",
	Long: `Manage stored Weibo session cookies.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (WEIBOCRAWL_COOKIE)

To get a cookie value:
1. Log into weibo.com or m.weibo.cn in your browser
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies
4. Copy the full Cookie header value for m.weibo.cn`,
}

var cookieSetCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Store a session cookie securely",
	Long: `Store a Weibo session cookie under a name. The cookie value is read
from a hidden prompt so it never lands in shell history.`,
	Example: `  # Interactive
  weibocrawl cookie set

  # Store under a name
  weibocrawl cookie set main`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCookieSet,
}

var cookieListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored cookie accounts",
	RunE:  runCookieList,
}

var cookieDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a stored cookie account",
	Args:  cobra.ExactArgs(1),
	RunE:  runCookieDelete,
}

func init() {
	rootCmd.AddCommand(cookieCmd)
	cookieCmd.AddCommand(cookieSetCmd)
	cookieCmd.AddCommand(cookieListCmd)
	cookieCmd.AddCommand(cookieDeleteCmd)
}

func runCookieSet(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var name string
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		fmt.Print("Account name: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read account name: %w", err)
		}
		name = strings.TrimSpace(input)
	}
	if name == "" {
		return fmt.Errorf("account name is required")
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Account %q already exists. Update cookie? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("Cookie value (hidden): ")
	cookieValue, err := readPassword()
	if err != nil {
		return fmt.Errorf("failed to read cookie: %w", err)
	}
	fmt.Println()
	if strings.TrimSpace(cookieValue) == "" {
		return fmt.Errorf("cookie value is required")
	}

	fmt.Print("User agent (optional, Enter for default): ")
	userAgent, _ := reader.ReadString('\n')

	account := &auth.Account{
		Name:      name,
		Cookie:    strings.TrimSpace(cookieValue),
		UserAgent: strings.TrimSpace(userAgent),
	}
	if err := manager.Store(account); err != nil {
		return err
	}

	fmt.Printf("Cookie for %q stored.\n", name)
	return nil
}

func runCookieList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No stored accounts. Run 'weibocrawl cookie set' to add one.")
		return nil
	}

	for _, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%-20s cookie=%s  modified=%s\n",
			sanitized.Name, sanitized.Cookie,
			sanitized.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func runCookieDelete(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted account %q.\n", args[0])
	return nil
}

// readPassword reads a line without echoing it.
func readPassword() (string, error) {
	data, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
