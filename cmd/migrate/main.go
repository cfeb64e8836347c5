package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"ms-storefront/internal/config"
	"ms-storefront/internal/database"
	"ms-storefront/internal/database/migrations"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/pricing"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up              apply all pending migrations
  down            roll back every migration
  steps <n>       apply n migrations (negative n rolls back)
  force <version> mark the schema as clean at version
  version         print the applied schema version
  seed            insert starter gold rates
`

// starter rates per gram, used by `seed` on a fresh database
var seedRates = map[string]string{
	"24K": "7250.00",
	"22K": "6650.00",
	"18K": "5440.00",
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	dir := flag.String("dir", cfg.Database.MigrationsDir, "migrations directory")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	log := logger.NewWithWriter(os.Stdout)
	defer log.Close()

	if err := run(cfg, *dir, flag.Arg(0), flag.Arg(1), log); err != nil {
		log.Error("MIGRATE", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config, dir, cmd, arg string, log *logger.Logger) error {
	if cmd == "seed" {
		return seed(cfg, log)
	}

	runner := migrations.NewRunner(cfg.Database.DSN, dir, log)
	defer runner.Close()

	switch cmd {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "steps":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("steps needs an integer argument: %w", err)
		}
		return runner.Steps(n)
	case "force":
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("force needs a version argument: %w", err)
		}
		return runner.Force(v)
	case "version":
		v, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func seed(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer bunDB.Close()

	store := pricing.NewStore(bunDB)
	now := time.Now().UTC()
	for karat, rate := range seedRates {
		if _, err := store.LatestRate(ctx, karat); err == nil {
			log.Info("SEED", fmt.Sprintf("Gold rate for %s already present, skipping", karat))
			continue
		}
		row := &models.GoldRate{
			Karat:       karat,
			RatePerGram: decimal.RequireFromString(rate),
			EffectiveAt: now,
		}
		if err := store.InsertRate(ctx, row); err != nil {
			return err
		}
		log.LogDatabase("SEED", "gold_rates", fmt.Sprintf("%s = %s/g", karat, rate))
	}
	return nil
}
