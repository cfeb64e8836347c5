package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"ms-storefront/internal/analytics"
	"ms-storefront/internal/config"
	"ms-storefront/internal/database"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/pricing"
	"ms-storefront/internal/push"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const usage = `usage: admin <command> [flags]

commands:
  sales      daily sales between -from and -to (YYYY-MM-DD, to inclusive)
  orders     recent orders, optionally filtered by -status
  queue      push notification queue by status
  gold-rate  set the current rate: gold-rate -karat 22K -rate 6650.00
`

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.NewWithWriter(os.Stderr)
	defer log.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Error("DATABASE", fmt.Sprintf("Failed to connect: %v", err))
		os.Exit(1)
	}
	defer bunDB.Close()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "sales":
		err = salesCmd(ctx, bunDB, args)
	case "orders":
		err = ordersCmd(ctx, bunDB, args)
	case "queue":
		err = queueCmd(ctx, bunDB)
	case "gold-rate":
		err = goldRateCmd(ctx, bunDB, cfg, log, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error("ADMIN", fmt.Sprintf("%s: %v", cmd, err))
		os.Exit(1)
	}
}

func salesCmd(ctx context.Context, db *bun.DB, args []string) error {
	fs := flag.NewFlagSet("sales", flag.ExitOnError)
	now := time.Now().UTC()
	from := fs.String("from", now.AddDate(0, 0, -30).Format(time.DateOnly), "first day")
	to := fs.String("to", now.Format(time.DateOnly), "last day, inclusive")
	_ = fs.Parse(args)

	start, err := time.Parse(time.DateOnly, *from)
	if err != nil {
		return fmt.Errorf("bad -from: %w", err)
	}
	end, err := time.Parse(time.DateOnly, *to)
	if err != nil {
		return fmt.Errorf("bad -to: %w", err)
	}

	summary, err := analytics.NewService(db).GetSalesSummary(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	renderSales(os.Stdout, summary)
	return nil
}

func renderSales(w io.Writer, s *analytics.SalesSummary) {
	table := tablewriter.NewWriter(w)
	table.Header("Date", "Orders", "Confirmed", "Revenue", "GST", "Avg Gold Rate")
	for _, d := range s.DailySales {
		_ = table.Append([]string{d.Date, strconv.Itoa(d.Orders), strconv.Itoa(d.ConfirmedOrders),
			d.Revenue.StringFixed(2), d.GSTCollected.StringFixed(2), d.AvgGoldRate.StringFixed(2)})
	}
	table.Footer("Total", strconv.Itoa(s.TotalOrders), strconv.Itoa(s.ConfirmedOrders),
		s.TotalRevenue.StringFixed(2), s.TotalGST.StringFixed(2), "")
	_ = table.Render()
}

func ordersCmd(ctx context.Context, db *bun.DB, args []string) error {
	fs := flag.NewFlagSet("orders", flag.ExitOnError)
	status := fs.String("status", "", "pending, confirmed, ...")
	limit := fs.Int("limit", 20, "rows to show")
	_ = fs.Parse(args)

	orders, err := analytics.NewService(db).ListOrders(ctx, analytics.OrderListOptions{
		Status: *status,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	renderOrders(os.Stdout, orders)
	return nil
}

func renderOrders(w io.Writer, orders []models.Order) {
	table := tablewriter.NewWriter(w)
	table.Header("Order", "Status", "Total", "Payment", "Created")
	for _, o := range orders {
		_ = table.Append([]string{o.OrderNumber, string(o.Status), o.TotalAmount.StringFixed(2),
			o.PaymentID, o.CreatedAt.Format(time.DateTime)})
	}
	_ = table.Render()
}

func queueCmd(ctx context.Context, db *bun.DB) error {
	counts, err := push.NewStore(db).CountByStatus(ctx)
	if err != nil {
		return err
	}
	renderQueue(os.Stdout, counts)
	return nil
}

func renderQueue(w io.Writer, counts []push.StatusCount) {
	table := tablewriter.NewWriter(w)
	table.Header("Status", "Entries")
	for _, c := range counts {
		_ = table.Append([]string{string(c.Status), strconv.Itoa(c.Count)})
	}
	_ = table.Render()
}

func goldRateCmd(ctx context.Context, db *bun.DB, cfg *config.Config, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("gold-rate", flag.ExitOnError)
	karat := fs.String("karat", cfg.Pricing.DefaultKarat, "karat, e.g. 22K")
	rate := fs.String("rate", "", "rate per gram")
	_ = fs.Parse(args)

	value, err := decimal.NewFromString(*rate)
	if err != nil {
		return fmt.Errorf("bad -rate %q: %w", *rate, err)
	}

	// write through the shared cache so the API picks the new rate up at once
	var cache pricing.Cache
	if client, err := database.ConnectRedis(ctx, cfg.Redis, log); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Cache unavailable, rate visible after TTL: %v", err))
	} else {
		defer client.Close()
		cache = pricing.NewRateCache(client, cfg.Pricing.RateCacheTTL)
	}

	svc := pricing.NewService(pricing.NewStore(db), cache, cfg.Checkout, cfg.Pricing, log)
	saved, err := svc.SetRate(ctx, *karat, models.SetGoldRateRequest{RatePerGram: value})
	if err != nil {
		return err
	}
	fmt.Printf("%s set to %s/g at %s\n", saved.Karat, saved.RatePerGram.StringFixed(2), saved.EffectiveAt.Format(time.DateTime))
	return nil
}
