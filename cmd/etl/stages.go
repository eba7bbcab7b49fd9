package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ackgis/weather-traffic-etl/internal/adapter/arcgis"
	"github.com/ackgis/weather-traffic-etl/internal/adapter/geojsonio"
	kafkaadapter "github.com/ackgis/weather-traffic-etl/internal/adapter/kafka"
	"github.com/ackgis/weather-traffic-etl/internal/adapter/metgov"
	"github.com/ackgis/weather-traffic-etl/internal/adapter/mrt"
	"github.com/ackgis/weather-traffic-etl/internal/adapter/nominatim"
	"github.com/ackgis/weather-traffic-etl/internal/adapter/openmeteo"
	"github.com/ackgis/weather-traffic-etl/internal/config"
	"github.com/ackgis/weather-traffic-etl/internal/domain"
	"github.com/ackgis/weather-traffic-etl/internal/hexbin"
	"github.com/ackgis/weather-traffic-etl/internal/observability"
	"github.com/ackgis/weather-traffic-etl/internal/pipeline"
)

// Data directory file names. Stages hand data to each other only through
// these files.
const (
	incidentsFile    = "traffic_incidents.geojson"
	locationsFile    = "locations.csv"
	forecastFile     = "weather_forecast.geojson"
	warningsRawFile  = "weather_warnings.json"
	warningsFile     = "weather_warnings.geojson"
	hotspotsFile     = "hotspots_hex.geojson"
	geocodeCacheFile = "geocode_cache.json"
	weatherCacheFile = "weather_cache.json"
)

// buildStages wires every pipeline stage. The publish and emit stages are
// only registered when their backends are configured.
func buildStages(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) ([]pipeline.Stage, func()) {
	geocoder := nominatim.NewCachedGeocoder(
		nominatim.NewClient(cfg.NominatimURL, cfg.UserAgent, cfg.HTTPTimeout, cfg.NominatimInterval, logger, metrics),
		cfg.GeocodeCacheSize, metrics)
	metClient := metgov.NewClient(cfg.METBaseURL, cfg.UserAgent, cfg.HTTPTimeout, logger)

	dataPath := func(name string) string { return filepath.Join(cfg.DataDir, name) }

	stages := []pipeline.Stage{
		{
			Name:    "incidents",
			Outputs: []string{incidentsFile},
			Run:     incidentsStage(cfg, geocoder, dataPath, logger, metrics),
		},
		{
			Name:    "locations",
			Outputs: []string{locationsFile},
			Run:     locationsStage(metClient, geocoder, dataPath, logger, metrics),
		},
		{
			Name:    "forecast",
			Inputs:  []string{locationsFile},
			Outputs: []string{forecastFile, warningsRawFile},
			Run:     forecastStage(metClient, dataPath, logger, metrics),
		},
		{
			Name:     "enrich",
			Inputs:   []string{forecastFile},
			Outputs:  []string{forecastFile},
			Optional: true,
			Run:      enrichStage(cfg, dataPath, logger, metrics),
		},
		{
			Name:     "warnings",
			Inputs:   []string{warningsRawFile, locationsFile},
			Outputs:  []string{warningsFile},
			Optional: true,
			Run:      warningsStage(dataPath, logger, metrics),
		},
		{
			Name:    "hotspots",
			Inputs:  []string{incidentsFile},
			Outputs: []string{hotspotsFile},
			Run:     hotspotsStage(cfg, dataPath, logger, metrics),
		},
	}

	if cfg.PublishConfigured() {
		stages = append(stages, pipeline.Stage{
			Name:     "publish",
			Inputs:   []string{incidentsFile, hotspotsFile},
			Optional: true,
			Run:      publishStage(cfg, dataPath, logger),
		})
	} else {
		logger.Info("publish stage disabled, no ArcGIS credentials")
	}

	cleanup := func() {}
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		cleanup = func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		stages = append(stages, pipeline.Stage{
			Name:     "emit",
			Inputs:   []string{incidentsFile},
			Optional: true,
			Run:      emitStage(writer, dataPath, logger),
		})
	}

	return stages, cleanup
}

func incidentsStage(cfg *config.Config, geocoder domain.Geocoder, dataPath func(string) string, logger *slog.Logger, metrics *observability.Metrics) func(context.Context) error {
	return func(ctx context.Context) error {
		scraper := mrt.NewScraper(cfg.MRTBaseURL, cfg.MRTPages, cfg.UserAgent, cfg.HTTPTimeout, logger)
		announcements, err := scraper.FetchAnnouncements(ctx)
		if err != nil {
			return err
		}

		resolver := mrt.NewResolver(geocoder, dataPath(geocodeCacheFile), logger)
		result, err := mrt.BuildIncidents(ctx, announcements, resolver, logger)
		if err != nil {
			return err
		}
		if err := resolver.SaveCache(); err != nil {
			return err
		}

		metrics.RecordsProcessed.WithLabelValues("incidents").Add(float64(len(result.Incidents)))
		metrics.RecordsSkipped.WithLabelValues("incidents", "unresolved_location").Add(float64(result.Unresolved))
		logger.Info("incidents built",
			"announcements", len(announcements),
			"incidents", len(result.Incidents),
			"unresolved", result.Unresolved)

		return geojsonio.WriteFeatureCollection(dataPath(incidentsFile), mrt.ToFeatureCollection(result.Incidents))
	}
}

func locationsStage(metClient *metgov.Client, geocoder domain.Geocoder, dataPath func(string) string, logger *slog.Logger, metrics *observability.Metrics) func(context.Context) error {
	return func(ctx context.Context) error {
		records, err := metClient.FetchForecasts(ctx)
		if err != nil {
			return err
		}

		table, err := metgov.LoadLocations(dataPath(locationsFile), logger)
		if err != nil {
			return err
		}
		added := table.Merge(records)
		resolved, err := table.GeocodeMissing(ctx, geocoder)
		if err != nil {
			return err
		}

		metrics.RecordsProcessed.WithLabelValues("locations").Add(float64(table.Len()))
		logger.Info("location table updated", "total", table.Len(), "added", added, "geocoded", resolved)

		return table.Save(dataPath(locationsFile))
	}
}

func forecastStage(metClient *metgov.Client, dataPath func(string) string, logger *slog.Logger, metrics *observability.Metrics) func(context.Context) error {
	return func(ctx context.Context) error {
		records, err := metClient.FetchForecasts(ctx)
		if err != nil {
			return err
		}
		table, err := metgov.LoadLocations(dataPath(locationsFile), logger)
		if err != nil {
			return err
		}

		result := metgov.BuildForecastFeatures(records, table, logger)
		metrics.RecordsProcessed.WithLabelValues("forecast").Add(float64(len(result.Collection.Features)))
		metrics.RecordsSkipped.WithLabelValues("forecast", "no_coordinates").Add(float64(result.Unlocated))

		if err := geojsonio.WriteFeatureCollection(dataPath(forecastFile), result.Collection); err != nil {
			return err
		}

		// Warnings ride along; a warning fetch failure must not fail the
		// forecast output.
		warnings, err := metClient.FetchWarnings(ctx)
		if err != nil {
			logger.Warn("warning fetch failed, skipping", "error", err)
			return nil
		}
		data, err := json.MarshalIndent(warnings, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal warnings: %w", err)
		}
		return geojsonio.WriteFileAtomic(dataPath(warningsRawFile), data)
	}
}

func enrichStage(cfg *config.Config, dataPath func(string) string, logger *slog.Logger, metrics *observability.Metrics) func(context.Context) error {
	return func(ctx context.Context) error {
		fc, err := geojsonio.ReadFeatureCollection(dataPath(forecastFile))
		if err != nil {
			return err
		}

		client := openmeteo.NewClient(cfg.OpenMeteoURL, cfg.UserAgent, cfg.HTTPTimeout, logger)
		enricher := openmeteo.NewEnricher(client, dataPath(weatherCacheFile), logger)
		result := enricher.Enrich(ctx, fc)
		if err := enricher.SaveCache(); err != nil {
			return err
		}

		metrics.RecordsProcessed.WithLabelValues("enrich").Add(float64(result.Enriched))
		metrics.RecordsSkipped.WithLabelValues("enrich", "provider_error").Add(float64(result.Failed))
		logger.Info("forecast enriched", "enriched", result.Enriched, "failed", result.Failed)

		return geojsonio.WriteFeatureCollection(dataPath(forecastFile), fc)
	}
}

func warningsStage(dataPath func(string) string, logger *slog.Logger, metrics *observability.Metrics) func(context.Context) error {
	return func(ctx context.Context) error {
		data, err := os.ReadFile(dataPath(warningsRawFile))
		if err != nil {
			return err
		}
		var records []domain.WarningRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("parse %s: %w", warningsRawFile, err)
		}
		table, err := metgov.LoadLocations(dataPath(locationsFile), logger)
		if err != nil {
			return err
		}

		result := metgov.BuildWarningFeatures(records, table, logger)
		metrics.RecordsProcessed.WithLabelValues("warnings").Add(float64(len(result.Collection.Features)))
		metrics.RecordsSkipped.WithLabelValues("warnings", "unplaced_area").Add(float64(result.UnplacedAreas))

		return geojsonio.WriteFeatureCollection(dataPath(warningsFile), result.Collection)
	}
}

func hotspotsStage(cfg *config.Config, dataPath func(string) string, logger *slog.Logger, metrics *observability.Metrics) func(context.Context) error {
	return func(ctx context.Context) error {
		fc, err := geojsonio.ReadFeatureCollection(dataPath(incidentsFile))
		if err != nil {
			return err
		}

		result, err := hexbin.Aggregate(cfg.HexEdgeMeters, fc)
		if err != nil {
			return err
		}

		metrics.HotspotCells.Set(float64(len(result.Cells.Features)))
		metrics.HotspotPoints.Set(float64(result.ValidPoints))
		metrics.RecordsSkipped.WithLabelValues("hotspots", "invalid_geometry").Add(float64(result.Skipped))
		logger.Info("hotspots aggregated",
			"edge_m", cfg.HexEdgeMeters,
			"cells", len(result.Cells.Features),
			"points", result.ValidPoints,
			"skipped", result.Skipped)

		return geojsonio.WriteFeatureCollection(dataPath(hotspotsFile), result.Cells)
	}
}

func publishStage(cfg *config.Config, dataPath func(string) string, logger *slog.Logger) func(context.Context) error {
	datasets := []struct {
		file      string
		title     string
		tags      []string
		timeField string
	}{
		{incidentsFile, "JB Traffic Incidents", []string{"traffic", "johor bahru"}, "timestamp_ms"},
		{hotspotsFile, "JB Traffic Hotspots", []string{"traffic", "hotspots", "johor bahru"}, ""},
		{forecastFile, "Malaysia Weather Forecast", []string{"weather", "forecast"}, "timestamp_ms"},
		{warningsFile, "Malaysia Weather Warnings", []string{"weather", "warnings"}, ""},
	}

	return func(ctx context.Context) error {
		publisher := arcgis.NewPublisher(cfg.ArcGISURL, cfg.ArcGISUsername, cfg.ArcGISPassword,
			cfg.ArcGISSharePublic, cfg.HTTPTimeout, logger)

		for _, d := range datasets {
			data, err := os.ReadFile(dataPath(d.file))
			if os.IsNotExist(err) {
				logger.Info("dataset not produced this run, not publishing", "file", d.file)
				continue
			}
			if err != nil {
				return err
			}

			result, err := publisher.Publish(ctx, arcgis.Dataset{
				Title:     d.title,
				Tags:      d.tags,
				TimeField: d.timeField,
				GeoJSON:   data,
			})
			if err != nil {
				return fmt.Errorf("publish %s: %w", d.title, err)
			}
			logger.Info("dataset published",
				"title", d.title, "item_id", result.ItemID, "layer_item_id", result.LayerItemID)
		}
		return nil
	}
}

func emitStage(writer *kafkaadapter.Writer, dataPath func(string) string, logger *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		fc, err := geojsonio.ReadFeatureCollection(dataPath(incidentsFile))
		if err != nil {
			return err
		}
		return writer.EmitIncidents(ctx, mrt.IncidentsFromFeatureCollection(fc))
	}
}
