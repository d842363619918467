package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"eve-metro/internal/api"
	"eve-metro/internal/auth"
	"eve-metro/internal/config"
	"eve-metro/internal/db"
	"eve-metro/internal/engine"
	"eve-metro/internal/esi"
	"eve-metro/internal/evescout"
	"eve-metro/internal/ledger"
	"eve-metro/internal/logger"
	"eve-metro/internal/notify"
	"eve-metro/internal/sde"
)

var version = "dev"

func main() {
	cfg := config.Load()

	port := flag.Int("port", cfg.Port, "HTTP server port")
	flag.Parse()

	logger.Banner(version)
	defer logger.Sync()

	wd, _ := os.Getwd()
	dataDir := filepath.Join(wd, cfg.DataDir)
	os.MkdirAll(dataDir, 0755)

	database, err := db.Open()
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	sealer, err := auth.NewSealer(cfg.TokenSealKey)
	if err != nil {
		logger.Error("AUTH", fmt.Sprintf("Token seal key: %v", err))
		os.Exit(1)
	}

	ssoConfig := &auth.SSOConfig{
		ClientID:     cfg.ESIClientID,
		ClientSecret: cfg.ESIClientSecret,
		CallbackURL:  cfg.ESICallbackURL,
		Scopes:       "esi-wallet.read_corporation_wallets.v1 esi-mail.send_mail.v1",
	}

	esiClient := esi.NewClient()
	scout := evescout.NewClient(esiClient, evescout.DefaultFeedURL)

	notifier := notify.New(cfg, esiClient, ssoConfig)
	reconciler := ledger.NewReconciler(cfg, database, sealer, ssoConfig, esiClient, notifier)

	srv := api.NewServer(cfg, esiClient, database, sealer, ssoConfig)

	// Load SDE in background; routing comes up once it finishes.
	go func() {
		data, err := sde.Load(dataDir)
		if err != nil {
			logger.Error("SDE", fmt.Sprintf("Load failed: %v", err))
			return
		}
		srv.SetSDE(data, engine.NewRouter(cfg, data, scout, database))
		logger.Success("SDE", "Router ready")
	}()

	// Wallet reconciliation loop.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.ReconcileIntervalMin) * time.Minute)
		defer ticker.Stop()
		for {
			reconciler.Run(time.Now())
			<-ticker.C
		}
	}()

	// Purge loop: stale wormhole connections and lapsed grants.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.PurgeIntervalMin) * time.Minute)
		defer ticker.Stop()
		for {
			<-ticker.C
			removed, err := database.PurgeOld(
				hours(cfg.PurgeAgeHours),
				hours(cfg.FastDecayAgeHours),
				hours(cfg.CriticalAgeHours),
				cfg.FastDecayType,
			)
			if err != nil {
				logger.Error("PURGE", fmt.Sprintf("connections: %v", err))
			} else if removed > 0 {
				logger.Info("PURGE", fmt.Sprintf("%d stale connections removed", removed))
			}
			if _, err := reconciler.PurgeGrants(time.Now()); err != nil {
				logger.Error("PURGE", fmt.Sprintf("grants: %v", err))
			}
		}
	}()

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	logger.Server(addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		logger.Error("Server", fmt.Sprintf("Failed: %v", err))
		os.Exit(1)
	}
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
