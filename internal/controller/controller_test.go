package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/scheduler-core/internal/domain"
	"github.com/wms-platform/scheduler-core/internal/statemachine"
)

func thresholds() statemachine.Thresholds {
	return statemachine.Thresholds{Critical: 0.15, Low: 0.3, High: 0.7, DeadBand: 0.05}
}

func TestController_RequiredDeliveryRate_UsesStateGain(t *testing.T) {
	buf := domain.NewBufferZone(100)
	for i := 0; i < 50; i++ { // target level 0.5
		product := domain.NewProduct("SKU", "test", 1)
		p := domain.NewPallet(idFor(i), product, 1, 0)
		require.NoError(t, buf.Insert(p))
	}

	c := New(statemachine.New(thresholds(), nil), thresholds())
	state := c.Update(buf, 10)
	require.Equal(t, statemachine.Normal, state)

	// level == target (0.5), so the deficit term is zero: rate == consumption*1.0.
	assert.InDelta(t, 10.0, c.RequiredDeliveryRate(10), 1e-9)
}

func TestController_RequiredDeliveryRate_FloorsAtZero(t *testing.T) {
	buf := domain.NewBufferZone(100)
	for i := 0; i < 90; i++ { // level 0.9 -> Overflow, far above target
		product := domain.NewProduct("SKU", "test", 1)
		p := domain.NewPallet(idFor(i), product, 1, 0)
		require.NoError(t, buf.Insert(p))
	}

	c := New(statemachine.New(thresholds(), nil), thresholds())
	state := c.Update(buf, 5)
	require.Equal(t, statemachine.Overflow, state)
	assert.Equal(t, 0.0, c.RequiredDeliveryRate(5))
}

func TestController_PalletsToRequest_CriticalFloor(t *testing.T) {
	buf := domain.NewBufferZone(100)
	for i := 0; i < 10; i++ { // level 0.10 -> Critical
		product := domain.NewProduct("SKU", "test", 1)
		p := domain.NewPallet(idFor(i), product, 1, 0)
		require.NoError(t, buf.Insert(p))
	}

	c := New(statemachine.New(thresholds(), nil), thresholds())
	state := c.Update(buf, 5)
	require.Equal(t, statemachine.Critical, state)

	// deficit = (0.5-0.10)*100 = 40, above the floor of 5, so deficit wins.
	assert.InDelta(t, 40.0, c.PalletsToRequest(100), 1e-9)
}

func TestController_PalletsToRequest_FloorWinsNearTarget(t *testing.T) {
	buf := domain.NewBufferZone(100)
	for i := 0; i < 48; i++ { // level 0.48, close to target 0.5 -> tiny deficit
		product := domain.NewProduct("SKU", "test", 1)
		p := domain.NewPallet(idFor(i), product, 1, 0)
		require.NoError(t, buf.Insert(p))
	}

	c := New(statemachine.New(thresholds(), nil), thresholds())
	c.Update(buf, 5)
	// level is just below target, in Normal: deficit = (0.5-0.48)*100 = 2, below Normal's floor of 1? no, 2>1.
	// push buffer fuller to make the deficit negative and exercise the floor.
	for i := 48; i < 60; i++ {
		product := domain.NewProduct("SKU", "test", 1)
		p := domain.NewPallet(idFor(i), product, 1, 0)
		require.NoError(t, buf.Insert(p))
	}
	state := c.Update(buf, 5)
	require.Equal(t, statemachine.Normal, state)
	assert.Equal(t, 1.0, c.PalletsToRequest(100))
}

func TestController_RecommendedForkliftCount_DelegatesToState(t *testing.T) {
	buf := domain.NewBufferZone(100)
	for i := 0; i < 10; i++ {
		product := domain.NewProduct("SKU", "test", 1)
		p := domain.NewPallet(idFor(i), product, 1, 0)
		require.NoError(t, buf.Insert(p))
	}
	c := New(statemachine.New(thresholds(), nil), thresholds())
	state := c.Update(buf, 5)
	require.Equal(t, statemachine.Critical, state)
	assert.Equal(t, 4, c.RecommendedForkliftCount(4))
}

func idFor(i int) string {
	return "p-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}
