package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"promo-stop-alerts/internal/app"
)

var (
	simulateUserID      int64
	simulateMarketplace string
	simulateProductID   string
	simulateProductName string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-notify",
	Short: "模拟一次促销自动加入并发送通知",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateUserID == 0 {
			return errors.New("--user 必须提供")
		}

		return getApp().SimulateNotify(cmd.Context(), app.SimulateOptions{
			UserID:      simulateUserID,
			Marketplace: simulateMarketplace,
			ProductID:   simulateProductID,
			ProductName: simulateProductName,
		})
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateUserID, "user", 0, "Telegram chat ID to notify")
	simulateCmd.Flags().StringVar(&simulateMarketplace, "marketplace", "ozon", "目标市场 (ozon 或 wb)")
	simulateCmd.Flags().StringVar(&simulateProductID, "product", "", "Product identifier to show in the message")
	simulateCmd.Flags().StringVar(&simulateProductName, "name", "", "Product name to show in the message")
}
