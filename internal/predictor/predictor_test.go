package predictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wms-platform/scheduler-core/internal/historical"
)

type fakeForecaster struct {
	routes map[string]historical.RouteStatistics
	picker map[string]historical.PickerProductStats
}

func (f fakeForecaster) RouteDurationForecast(fromZone, toZone string) (historical.RouteStatistics, bool) {
	rt, ok := f.routes[fromZone+"->"+toZone]
	return rt, ok
}

func (f fakeForecaster) PickerProductForecast(pickerID, sku string) (historical.PickerProductStats, bool) {
	p, ok := f.picker[pickerID+"|"+sku]
	return p, ok
}

func TestPredictor_Predict_ActualTierWinsWhenPresent(t *testing.T) {
	p := New(fakeForecaster{}, Config{})
	est := p.Predict(Request{HasActual: true, ActualDurationSec: 42})
	assert.Equal(t, SourceActual, est.Source)
	assert.Equal(t, 42.0, est.DurationSec)
}

func TestPredictor_Predict_RouteStatsTierRequiresConfidence(t *testing.T) {
	confident := fakeForecaster{routes: map[string]historical.RouteStatistics{
		"A->B": {FromZone: "A", ToZone: "B", PredictedSec: 95, Confidence: 0.8},
	}}
	p := New(confident, Config{RouteConfidenceThreshold: 0.5})
	est := p.Predict(Request{FromZone: "A", ToZone: "B", IsPicker: false})
	assert.Equal(t, SourceRouteStats, est.Source)
	assert.Equal(t, 95.0, est.DurationSec)

	unconfident := fakeForecaster{routes: map[string]historical.RouteStatistics{
		"A->B": {FromZone: "A", ToZone: "B", PredictedSec: 95, Confidence: 0.1},
	}}
	p2 := New(unconfident, Config{RouteConfidenceThreshold: 0.5, GlobalMeanFallbackSec: 60})
	est2 := p2.Predict(Request{FromZone: "A", ToZone: "B", IsPicker: false})
	assert.NotEqual(t, SourceRouteStats, est2.Source, "a route below the confidence threshold must fall through the cascade")
}

func TestPredictor_Predict_PickerProductTierOnlyAppliesToPickerRequests(t *testing.T) {
	forecaster := fakeForecaster{picker: map[string]historical.PickerProductStats{
		"picker-1|SKU-1": {PickerID: "picker-1", ProductSKU: "SKU-1", UnitsPerMinute: 6, LinesPerMinute: 2},
	}}
	p := New(forecaster, Config{})

	est := p.Predict(Request{IsPicker: true, WorkerID: "picker-1", ProductSKU: "SKU-1", Quantity: 12})
	assert.Equal(t, SourcePickerProduct, est.Source)
	assert.InDelta(t, 120.0, est.DurationSec, 1e-9) // 12 units / 6 per-minute = 2 min = 120s

	notPicker := p.Predict(Request{IsPicker: false, WorkerID: "picker-1", ProductSKU: "SKU-1"})
	assert.NotEqual(t, SourcePickerProduct, notPicker.Source)
}

func TestPredictor_Predict_FallsBackToWaveMeanThenGlobalMean(t *testing.T) {
	p := New(fakeForecaster{}, Config{GlobalMeanFallbackSec: 75})

	global := p.Predict(Request{})
	assert.Equal(t, SourceGlobalMean, global.Source)
	assert.Equal(t, 75.0, global.DurationSec)

	p.SetWaveMeanFallback(33)
	waveMean := p.Predict(Request{})
	assert.Equal(t, SourceWaveMean, waveMean.Source)
	assert.Equal(t, 33.0, waveMean.DurationSec)
}

func TestWaveMean_AveragesDurationsAndHandlesEmpty(t *testing.T) {
	assert.Equal(t, 0.0, WaveMean(nil))

	records := []historical.TaskActionRecord{
		{DurationSec: 10, StartedAt: time.Now()},
		{DurationSec: 20, StartedAt: time.Now()},
		{DurationSec: 30, StartedAt: time.Now()},
	}
	assert.Equal(t, 20.0, WaveMean(records))
}
