// Package main implements a Pump.Fun sniper that watches the Helius
// Enhanced WebSocket feed for new token creations and buys watched symbols
// through the PumpPortal trade API.
//
// The sniper operates in three stages:
// 1. Stream: subscribes to Pump.Fun transactions over WebSocket
// 2. Events: decodes CreateEvent payloads from transaction logs
// 3. Dispatch: matches decoded symbols against the watch set and fires buys
//
// Usage:
//
//	go run cmd/main.go                    # Live trading mode
//	go run cmd/main.go --simulate         # Simulation mode
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pumpfun-sniper/internal/config"
	"pumpfun-sniper/internal/dispatch"
	"pumpfun-sniper/internal/logger"
	"pumpfun-sniper/internal/stream"
	"pumpfun-sniper/internal/trader"

	"github.com/sirupsen/logrus"
)

func main() {
	simulate := flag.Bool("simulate", false, "Simulation mode (no real trades)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg.SimulateMode = *simulate

	logger.Setup(cfg.LogLevel, cfg.LogFile)

	if cfg.SimulateMode {
		logrus.Info("🧪 Starting Pump.Fun Sniper in SIMULATION MODE")
		logrus.Info("📊 Token creations will be matched but no real trades executed")
	} else {
		logrus.Info("🤖 Starting Pump.Fun Sniper in LIVE TRADING MODE")
		logrus.Info("⚡ Matched symbols trigger REAL buy orders")
	}
	cfg.LogConfig()

	watch := dispatch.NewWatchSet(cfg.MonitoredSymbols)
	if watch.Len() == 0 {
		logrus.Warn("No symbols configured in MONITORED_SYMBOLS, will log all creates without trading")
	} else {
		logrus.WithFields(logrus.Fields{
			"count":   watch.Len(),
			"symbols": watch.Symbols(),
		}).Info("🔍 Watching token symbols")
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logrus.Info("🛑 Shutdown signal received, stopping gracefully...")
		cancel()
	}()

	if err := cfg.PriceService.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start price service: %v", err)
	}

	dispatcher := dispatch.NewDispatcher(watch, trader.NewTrader(cfg))

	metrics := stream.NewMetrics()
	go metrics.Report(ctx.Done(), time.Minute)

	client := stream.NewClient(stream.ClientConfig{
		URL:            cfg.HeliusWSURL,
		ProgramID:      cfg.PumpFunProgramID,
		PingInterval:   cfg.PingInterval,
		ReconnectDelay: cfg.ReconnectDelay,
	}, dispatcher, metrics)

	logrus.Info("🚀 Sniper pipeline started: Stream → Events → Dispatch → Trade")

	if err := client.Run(ctx); err != nil {
		logrus.WithError(err).Error("Ingestion loop failed")
	}

	// Let in-flight buys finish before exiting.
	dispatcher.Wait()
	metrics.LogMetrics()
	logrus.Info("✅ All services stopped, shut down complete")
}
