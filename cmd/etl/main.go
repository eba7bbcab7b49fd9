// Command etl runs the Johor Bahru traffic and weather pipeline: scrape,
// geocode, enrich, aggregate hotspots, and publish.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ackgis/weather-traffic-etl/internal/adapter/httpserver"
	"github.com/ackgis/weather-traffic-etl/internal/config"
	"github.com/ackgis/weather-traffic-etl/internal/observability"
	"github.com/ackgis/weather-traffic-etl/internal/pipeline"
)

func main() {
	stageList := flag.String("stages", "", "comma-separated stage subset to run (default: all)")
	dataDir := flag.String("data-dir", "", "override DATA_DIR")
	hexEdge := flag.Float64("hex-m", 0, "override HEX_EDGE_METERS (hex cell edge length)")
	listStages := flag.Bool("list", false, "print stage names and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *hexEdge != 0 {
		if *hexEdge < 0 {
			slog.Error("hex cell edge length must be positive", "hex_m", *hexEdge)
			os.Exit(1)
		}
		cfg.HexEdgeMeters = *hexEdge
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	stages, cleanup := buildStages(cfg, logger, metrics)
	defer cleanup()

	driver := pipeline.NewDriver(cfg.DataDir, stages, logger, metrics)

	if *listStages {
		fmt.Println(strings.Join(driver.StageNames(), "\n"))
		return
	}

	var selected []string
	if *stageList != "" {
		for _, name := range strings.Split(*stageList, ",") {
			if name = strings.TrimSpace(name); name != "" {
				selected = append(selected, name)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The metrics server is optional; cron deployments usually run without it.
	var srv *httpserver.Server
	if cfg.HTTPAddr != "" {
		srv = httpserver.NewServer(cfg.HTTPAddr, driver, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	runErr := driver.Run(ctx, selected)
	if runErr != nil {
		logger.Error("pipeline failed", "error", runErr)
	} else {
		logger.Info("pipeline complete", "data_dir", cfg.DataDir)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	if runErr != nil {
		cleanup()
		os.Exit(1)
	}
}
