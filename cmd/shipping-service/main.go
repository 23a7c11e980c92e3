package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shipping-service",
	Short: "Weight-based shipping charges for carts and orders",
	Long: `shipping-service prices shipments at a per-kilogram rate with a minimum charge.
The total weight of all items is rounded up to the next whole kilogram once,
then billed as max(minimum, kilograms * rate).

Run without a subcommand to start the HTTP server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(quoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
