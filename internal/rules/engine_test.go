package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/scheduler-core/internal/statemachine"
)

func TestEngine_Critical_FiresUrgentDeliveryWithActivateAll(t *testing.T) {
	e := New()
	actions := e.Evaluate(BufferFact{State: statemachine.Critical, FillLevel: 0.10})
	require.Len(t, actions, 1)
	assert.Equal(t, UrgentDelivery, actions[0].Type)
	assert.Equal(t, 100, actions[0].Priority)
	assert.GreaterOrEqual(t, actions[0].Pallets, 10)
	assert.Equal(t, -1, actions[0].Forklifts)
}

func TestEngine_Low_RequiresIdleForkliftsToFire(t *testing.T) {
	e := New()

	none := e.Evaluate(BufferFact{State: statemachine.Low, IdleForklifts: 0})
	assert.Empty(t, none)

	withIdle := e.Evaluate(BufferFact{State: statemachine.Low, IdleForklifts: 2})
	require.Len(t, withIdle, 1)
	assert.Equal(t, RequestPallets, withIdle[0].Type)
	assert.Equal(t, 75, withIdle[0].Priority)
	assert.Equal(t, 4, withIdle[0].Pallets) // max(3, 2*2)
}

func TestEngine_Low_PalletFloorAtThree(t *testing.T) {
	e := New()
	actions := e.Evaluate(BufferFact{State: statemachine.Low, IdleForklifts: 1})
	require.Len(t, actions, 1)
	assert.Equal(t, 3, actions[0].Pallets) // max(3, 2*1)
}

func TestEngine_HighConsumptionProbing_OnlyWhenNormalAndBelowHalf(t *testing.T) {
	e := New()

	fires := e.Evaluate(BufferFact{State: statemachine.Normal, ConsumptionRate: 200, FillLevel: 0.4})
	require.Len(t, fires, 1)
	assert.Equal(t, RequestPallets, fires[0].Type)
	assert.Equal(t, 60, fires[0].Priority)

	noFireLowConsumption := e.Evaluate(BufferFact{State: statemachine.Normal, ConsumptionRate: 100, FillLevel: 0.4})
	assert.Empty(t, noFireLowConsumption)

	noFireHighLevel := e.Evaluate(BufferFact{State: statemachine.Normal, ConsumptionRate: 200, FillLevel: 0.6})
	assert.Empty(t, noFireHighLevel)
}

func TestEngine_Overflow_FiresDeactivateKeepOne(t *testing.T) {
	e := New()
	actions := e.Evaluate(BufferFact{State: statemachine.Overflow})
	require.Len(t, actions, 1)
	assert.Equal(t, DeactivateForklifts, actions[0].Type)
	assert.Equal(t, 1, actions[0].Forklifts)
}

// TestEngine_Evaluate_ReturnsActionsSortedByPriorityDescending checks the
// descending-priority contract over the actions a Low fact returns. In
// this rule set only one rule can fire for any single state, so the
// returned slice holds at most one action.
func TestEngine_Evaluate_ReturnsActionsSortedByPriorityDescending(t *testing.T) {
	e := New()
	actions := e.Evaluate(BufferFact{State: statemachine.Low, IdleForklifts: 2})
	for i := 1; i < len(actions); i++ {
		assert.LessOrEqual(t, actions[i].Priority, actions[i-1].Priority)
	}
}

func TestEngine_Evaluate_StatelessAcrossCalls(t *testing.T) {
	e := New()
	e.Evaluate(BufferFact{State: statemachine.Critical})
	second := e.Evaluate(BufferFact{State: statemachine.Normal, ConsumptionRate: 50})
	assert.Empty(t, second, "no fact from the prior call should leak into this one")
}
