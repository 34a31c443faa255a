// internal/cli/balance.go
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omipheo/home-advisor-scraping/internal/auth"
	"github.com/omipheo/home-advisor-scraping/internal/captcha"
	"github.com/omipheo/home-advisor-scraping/internal/ui"
)

var saveKey bool

// balanceCmd reports the CAPTCHA solver account balance.
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the CAPTCHA solver account balance",
	Example: `  # Balance with the key from $CAPTCHA_API_KEY or the keyring
  hascrape balance

  # Check a key and store it in the OS keyring for later runs
  hascrape balance --captcha-key=KEY --save`,
	Args: cobra.NoArgs,
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().BoolVar(&saveKey, "save", false, "Store the key in the OS keyring on success")
}

func runBalance(cmd *cobra.Command, args []string) error {
	a := GetApp()

	amount, err := a.Captcha.Balance(cmd.Context())
	if errors.Is(err, captcha.ErrNotConfigured) {
		return fmt.Errorf("no captcha key: pass --captcha-key or set $CAPTCHA_API_KEY")
	}
	if err != nil {
		return err
	}

	fmt.Println(ui.Success(fmt.Sprintf("Balance: $%.2f", amount)))

	if saveKey && a.Config.CaptchaAPIKey != "" {
		if err := auth.SaveCaptchaKey(a.Config.CaptchaAPIKey); err != nil {
			return fmt.Errorf("storing key: %w", err)
		}
		fmt.Println(ui.Success("Key stored in keyring"))
	}
	return nil
}
