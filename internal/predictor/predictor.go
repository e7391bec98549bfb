// Package predictor implements the duration predictor (C10): a pure
// read-through cascade over cached historical aggregates, with no
// inference performed here.
package predictor

import (
	"time"

	"github.com/wms-platform/scheduler-core/internal/historical"
)

// Forecaster is the read-through cache the cascade consults for the
// route_stats and picker_product tiers. *aggregation.Service satisfies
// this.
type Forecaster interface {
	RouteDurationForecast(fromZone, toZone string) (historical.RouteStatistics, bool)
	PickerProductForecast(pickerID, sku string) (historical.PickerProductStats, bool)
}

// Source tags which cascade tier produced a duration estimate.
type Source string

const (
	SourceActual     Source = "actual"
	SourceRouteStats Source = "route_stats"
	SourcePickerProduct Source = "picker_product"
	SourceWaveMean   Source = "wave_mean"
	SourceGlobalMean Source = "global_mean"
)

// Request describes a prospective task the predictor estimates a
// duration for.
type Request struct {
	WorkerID   string
	FromZone   string
	ToZone     string
	ProductSKU string
	WeightKg   float64
	Quantity   int
	At         time.Time
	IsPicker   bool

	// ActualDurationSec is set only in replay/backtest mode, when the
	// historical row for this exact action is known.
	ActualDurationSec float64
	HasActual         bool
}

// Estimate is the predictor's output.
type Estimate struct {
	DurationSec float64
	Source      Source
}

// Predictor evaluates the cascade documented in spec.md §4.9.
type Predictor struct {
	forecasts        Forecaster
	routeConfidence  float64
	waveMeanFallback float64
	globalMeanSec    float64
}

// Config tunes cascade thresholds.
type Config struct {
	RouteConfidenceThreshold float64
	GlobalMeanFallbackSec    float64
}

// New creates a predictor reading from forecasts.
func New(forecasts Forecaster, cfg Config) *Predictor {
	if cfg.RouteConfidenceThreshold <= 0 {
		cfg.RouteConfidenceThreshold = 0.3
	}
	if cfg.GlobalMeanFallbackSec <= 0 {
		cfg.GlobalMeanFallbackSec = 60
	}
	return &Predictor{forecasts: forecasts, routeConfidence: cfg.RouteConfidenceThreshold, globalMeanSec: cfg.GlobalMeanFallbackSec}
}

// SetWaveMeanFallback records the current wave's observed mean task
// duration, used as the cascade's penultimate fallback.
func (p *Predictor) SetWaveMeanFallback(meanSec float64) {
	p.waveMeanFallback = meanSec
}

// Predict runs the four-tier cascade: actual -> route_stats ->
// picker_product -> wave mean / global mean.
func (p *Predictor) Predict(req Request) Estimate {
	if req.HasActual {
		return Estimate{DurationSec: req.ActualDurationSec, Source: SourceActual}
	}

	if !req.IsPicker {
		if rt, ok := p.forecasts.RouteDurationForecast(req.FromZone, req.ToZone); ok && rt.Confidence >= p.routeConfidence {
			return Estimate{DurationSec: rt.PredictedSec, Source: SourceRouteStats}
		}
	}

	if req.IsPicker {
		if stats, ok := p.forecasts.PickerProductForecast(req.WorkerID, req.ProductSKU); ok && stats.LinesPerMinute > 0 {
			qty := req.Quantity
			if qty <= 0 {
				qty = 1
			}
			minutes := float64(qty) / stats.UnitsPerMinute
			if stats.UnitsPerMinute <= 0 {
				minutes = 1 / stats.LinesPerMinute
			}
			return Estimate{DurationSec: minutes * 60, Source: SourcePickerProduct}
		}
	}

	if p.waveMeanFallback > 0 {
		return Estimate{DurationSec: p.waveMeanFallback, Source: SourceWaveMean}
	}
	return Estimate{DurationSec: p.globalMeanSec, Source: SourceGlobalMean}
}

// WaveMean computes the mean duration of a set of already-observed
// task action records, used to seed SetWaveMeanFallback per wave.
func WaveMean(records []historical.TaskActionRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += r.DurationSec
	}
	return sum / float64(len(records))
}
