package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/models"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/service"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/pkg/config"
)

var (
	quoteItems   []string
	quoteRate    string
	quoteMinimum string
	quoteJSON    bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Compute a shipping charge offline",
	Long: `Compute a shipping charge without starting the server.

Items are given as WEIGHT_KG[:QUANTITY]; quantity defaults to 1.

Examples:
  shipping-service quote --item 0.5 --item 2.0 --item 0.3:2
  shipping-service quote --item 1.5 --rate 45 --minimum 0 --json`,
	RunE: runQuote,
}

func init() {
	quoteCmd.Flags().StringArrayVar(&quoteItems, "item", nil, "Line item as WEIGHT_KG[:QUANTITY] (repeatable)")
	quoteCmd.Flags().StringVar(&quoteRate, "rate", "", "Per-kilogram rate (defaults to configured rate)")
	quoteCmd.Flags().StringVar(&quoteMinimum, "minimum", "", "Minimum charge (defaults to configured minimum)")
	quoteCmd.Flags().BoolVar(&quoteJSON, "json", false, "Print the quote as JSON")
}

// parseItem reads "0.5" or "0.3:2".
func parseItem(s string) (models.LineItem, error) {
	weightStr, qtyStr, hasQty := strings.Cut(strings.TrimSpace(s), ":")

	weight, err := decimal.NewFromString(weightStr)
	if err != nil {
		return models.LineItem{}, fmt.Errorf("item %q: bad weight: %w", s, err)
	}

	qty := 1
	if hasQty {
		qty, err = strconv.Atoi(qtyStr)
		if err != nil {
			return models.LineItem{}, fmt.Errorf("item %q: bad quantity: %w", s, err)
		}
	}
	return models.LineItem{WeightKg: weight, Quantity: qty}, nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	req := models.QuoteRequest{Items: make([]models.LineItem, 0, len(quoteItems))}
	for _, s := range quoteItems {
		it, err := parseItem(s)
		if err != nil {
			return err
		}
		req.Items = append(req.Items, it)
	}
	if quoteRate != "" {
		r, err := decimal.NewFromString(quoteRate)
		if err != nil {
			return fmt.Errorf("--rate: %w", err)
		}
		req.PerKgRate = &r
	}
	if quoteMinimum != "" {
		m, err := decimal.NewFromString(quoteMinimum)
		if err != nil {
			return fmt.Errorf("--minimum: %w", err)
		}
		req.MinimumCharge = &m
	}

	svc := service.NewShippingService(nil, nil, nil, serviceConfig(cfg), nil)
	q, err := svc.QuoteRequest(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if quoteJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	}

	_, err = fmt.Fprintf(out, "total %s kg, billed %d kg, charge %s (rate %s/kg, minimum %s)\n",
		q.TotalWeightKg, q.RoundedWeightKg, q.Charge.StringFixed(2), q.PerKg, q.Minimum)
	return err
}
