package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"promo-stop-alerts/internal/app"
)

var (
	showLimit   int
	showPending bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent automatic withdrawals or the pending queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:   showLimit,
			Pending: showPending,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showPending, "pending", false, "Show queued actions instead of the history")
}
