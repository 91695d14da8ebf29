package commands

import (
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"vitasana-backend/lib/serviceutil"
)

var productsLimit *int64

func init() {
	productsLimit = productsListCmd.Flags().Int64("limit", 50, "Maximum number of rows, -1 for all.")
	productsCmd.AddCommand(productsListCmd)
	rootCmd.AddCommand(productsCmd)
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Inspect the known catalog.",
}

var productsListCmd = &cobra.Command{
	Use:   "list [--limit N] [keyword...]",
	Short: "Prints known products with their latest stock and price.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)

		statuses, err := store.GetLatestStatuses(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to load statuses", err)
		}

		var keywords []string
		keywords = append(keywords, args...)
		match := func(name string) bool {
			if len(keywords) == 0 {
				return true
			}
			for _, keyword := range keywords {
				if strings.Contains(strings.ToLower(name), strings.ToLower(keyword)) {
					return true
				}
			}
			return false
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"SKU", "Name", "Stock", "Price", "Availability", "Last Checked"})

		shown := int64(0)
		for _, status := range statuses {
			if !match(status.Name) {
				continue
			}
			if *productsLimit >= 0 && shown >= *productsLimit {
				break
			}
			shown++

			stock := "-"
			if status.Stock.Valid {
				stock = strconv.FormatInt(status.Stock.Int64, 10)
			}
			price := "-"
			if status.FinalPrice.Valid {
				price = strconv.FormatFloat(status.FinalPrice.Float64, 'f', 2, 64)
			}
			t.AppendRow(table.Row{
				status.Sku,
				status.Name,
				stock,
				price,
				status.Availability.String,
				status.LastCheckedAt.String,
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
