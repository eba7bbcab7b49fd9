// Package pipeline runs the ETL stages in order against a shared data
// directory. Stages communicate only through files: each stage declares the
// files it needs and the files it produces, and the driver validates inputs
// before invoking a stage instead of trusting an implicit run order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ackgis/weather-traffic-etl/internal/observability"
)

// Stage is one unit of work in the pipeline.
type Stage struct {
	// Name identifies the stage in logs, metrics, and CLI selection.
	Name string

	// Inputs are files (relative to the data directory) that must exist
	// before the stage runs.
	Inputs []string

	// Outputs are files the stage produces, for documentation and for
	// validating later stages against earlier ones.
	Outputs []string

	// Optional stages are skipped when their inputs are missing or when they
	// fail; the rest of the pipeline continues. Required stages abort the run.
	Optional bool

	// Run does the work. It must not write partial outputs on error.
	Run func(ctx context.Context) error
}

// Driver executes stages sequentially against one data directory.
type Driver struct {
	dataDir   string
	stages    []Stage
	logger    *slog.Logger
	metrics   *observability.Metrics
	completed atomic.Int64
}

// NewDriver creates a Driver. Stage order is execution order.
func NewDriver(dataDir string, stages []Stage, logger *slog.Logger, metrics *observability.Metrics) *Driver {
	return &Driver{
		dataDir: dataDir,
		stages:  stages,
		logger:  logger,
		metrics: metrics,
	}
}

// StageNames returns the names of all registered stages in execution order.
func (d *Driver) StageNames() []string {
	names := make([]string, len(d.stages))
	for i, s := range d.stages {
		names[i] = s.Name
	}
	return names
}

// CheckReadiness reports nil once at least one stage has completed.
func (d *Driver) CheckReadiness(_ context.Context) error {
	if d.completed.Load() == 0 {
		return errors.New("no pipeline stage has completed yet")
	}
	return nil
}

// Progress returns completed and total stage counts.
func (d *Driver) Progress() (completed, total int) {
	return int(d.completed.Load()), len(d.stages)
}

// Run executes the selected stages in registration order. An empty selection
// runs every stage. Unknown names in the selection are an error before any
// stage runs.
func (d *Driver) Run(ctx context.Context, selected []string) error {
	if err := d.validateSelection(selected); err != nil {
		return err
	}

	d.metrics.PipelineRunning.Set(1)
	defer d.metrics.PipelineRunning.Set(0)

	for _, stage := range d.stages {
		if len(selected) > 0 && !slices.Contains(selected, stage.Name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline interrupted before stage %s: %w", stage.Name, err)
		}
		if err := d.runStage(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) runStage(ctx context.Context, stage Stage) error {
	if missing := d.missingInputs(stage); len(missing) > 0 {
		if stage.Optional {
			d.logger.Warn("skipping optional stage, inputs missing",
				"stage", stage.Name, "missing", strings.Join(missing, ","))
			d.metrics.StageRuns.WithLabelValues(stage.Name, "skipped").Inc()
			return nil
		}
		return fmt.Errorf("stage %s: required input(s) missing: %s", stage.Name, strings.Join(missing, ", "))
	}

	d.logger.Info("stage starting", "stage", stage.Name)
	start := time.Now()

	err := stage.Run(ctx)
	d.metrics.StageDuration.WithLabelValues(stage.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		if stage.Optional && ctx.Err() == nil {
			d.logger.Warn("optional stage failed, continuing", "stage", stage.Name, "error", err)
			d.metrics.StageRuns.WithLabelValues(stage.Name, "failed").Inc()
			return nil
		}
		d.metrics.StageRuns.WithLabelValues(stage.Name, "failed").Inc()
		return fmt.Errorf("stage %s: %w", stage.Name, err)
	}

	d.metrics.StageRuns.WithLabelValues(stage.Name, "ok").Inc()
	d.completed.Add(1)
	d.logger.Info("stage finished", "stage", stage.Name, "duration", time.Since(start))
	return nil
}

func (d *Driver) missingInputs(stage Stage) []string {
	var missing []string
	for _, input := range stage.Inputs {
		if _, err := os.Stat(filepath.Join(d.dataDir, input)); err != nil {
			missing = append(missing, input)
		}
	}
	return missing
}

func (d *Driver) validateSelection(selected []string) error {
	known := d.StageNames()
	for _, name := range selected {
		if !slices.Contains(known, name) {
			return fmt.Errorf("unknown stage %q (known: %s)", name, strings.Join(known, ", "))
		}
	}
	return nil
}
