package main

import (
	"fmt"
	"os"

	"github.com/onebills/onebills/internal/config"
	"github.com/onebills/onebills/internal/db"
	"github.com/onebills/onebills/internal/logging"
)

func main() {
	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}
	dir, err := db.ParseDirection(direction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "usage: migrate [up|down]: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	if err := db.Migrate(cfg.DatabaseURL, dir); err != nil {
		logger.Error("migrate", "direction", string(dir), "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied", "direction", string(dir))
}
