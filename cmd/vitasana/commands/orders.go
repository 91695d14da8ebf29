package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"vitasana-backend/lib/serviceutil"
)

var ordersRefreshStock *bool

func init() {
	ordersRefreshStock = ordersSyncCmd.Flags().Bool("refresh-stock", false,
		"Re-check supplier stock for matched items instead of using the last monitoring record.")
	ordersCmd.AddCommand(ordersSyncCmd)
	rootCmd.AddCommand(ordersCmd)
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Order reconciliation against the shop's WooCommerce backend.",
}

var ordersSyncCmd = &cobra.Command{
	Use:   "sync [--refresh-stock]",
	Short: "Pulls orders, matches line items to the catalog and stores the result.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)

		var service = newOrdersService(cfg, store, nil)
		if *ordersRefreshStock {
			service = newOrdersService(cfg, store, newTracker(cfg, store))
		}

		result, err := service.SyncOrders(cmd.Context())
		if err != nil {
			serviceutil.Fatal("order sync failed", err)
		}
		slog.Info("orders synced",
			"orders", result.OrdersSynced,
			"matched", result.ItemsMatched,
			"unmatched", result.ItemsUnmatched,
			"fulfillability", result.Fulfillability)
	},
}
