package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"coinview/coinbase"
	"coinview/config"
	"coinview/feed"
	"coinview/gateway"
	"coinview/internal/channel"
	"coinview/logger"
	"coinview/models"
	"coinview/terminal"
	"coinview/valuation"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Coinview.Name,
		"version": cfg.Coinview.Version,
	}).Info("starting coinview")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.CloudWatch.Region, cfg.CloudWatch.Namespace, cfg.CloudWatch.Dashboard)
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	snapshots := channel.NewSnapshots(cfg.Gateway.SnapshotBuffer)
	defer snapshots.Close()

	currencies := models.NewCurrencies()
	portfolio := models.NewPortfolio(cfg.Portfolio.BaseCurrency, currencies)

	feedClient := feed.NewClient(cfg.Feed)
	accountSource := coinbase.NewClient(cfg.Coinbase)

	driver := valuation.NewDriver(cfg.Portfolio, accountSource, feedClient, currencies, portfolio, snapshots)
	if cfg.Portfolio.TerminalOutput {
		driver.SetRenderer(terminal.NewRenderer(os.Stdout))
	}

	gatewayServer := gateway.NewServer(cfg.Gateway, log, snapshots)

	if err := feedClient.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start market data feed")
		os.Exit(1)
	}
	if err := driver.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start valuation driver")
		os.Exit(1)
	}

	var wg sync.WaitGroup
	if gatewayServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gatewayServer.Run(ctx); err != nil {
				log.WithError(err).Warn("gateway exited with error")
			}
		}()
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping valuation driver")
	driver.Stop()

	log.Info("stopping market data feed")
	feedClient.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("coinview stopped")
}
