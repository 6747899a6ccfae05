package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"leasechain/config"
	"leasechain/core"
	"leasechain/native/access"
	"leasechain/observability/logging"
	"leasechain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis seed file (overrides config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	logger := logging.Setup("leasechaind", cfg.Env, logging.Options{File: cfg.LogFile})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	market := core.NewMarketplace(db, cfg)
	market.SetLogger(logger)

	genesisPath := cfg.GenesisFile
	if strings.TrimSpace(*genesisFlag) != "" {
		genesisPath = *genesisFlag
	}
	if strings.TrimSpace(genesisPath) != "" {
		genesis, err := config.LoadGenesis(genesisPath)
		if err != nil {
			logger.Error("Failed to load genesis seed", slog.Any("error", err))
			os.Exit(1)
		}
		switch err := market.ApplyGenesis(genesis); {
		case err == nil:
			logger.Info("Genesis state seeded", "path", genesisPath)
		case errors.Is(err, access.ErrNotAuthorized):
			logger.Info("Genesis already applied, skipping seed")
		default:
			logger.Error("Failed to apply genesis", slog.Any("error", err))
			os.Exit(1)
		}
	}
	logger.Info("Marketplace state ready", "dataDir", cfg.DataDir)
}
