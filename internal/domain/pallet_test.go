package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPallet_AdvanceTo_FollowsFixedLifecycle(t *testing.T) {
	p := pallet("a", 10)
	require.NoError(t, p.AssignToForklift("fk-1"))
	assert.Equal(t, LocationInTransit, p.Location)
	assert.Equal(t, "fk-1", p.HoldingForkliftID)

	require.NoError(t, p.AdvanceTo(LocationBuffer))
	assert.Equal(t, LocationBuffer, p.Location)
	assert.Empty(t, p.HoldingForkliftID, "forklift hold must clear once the pallet leaves transit")

	require.NoError(t, p.AdvanceTo(LocationPicking))
	require.NoError(t, p.AdvanceTo(LocationCompleted))
}

func TestPallet_AdvanceTo_RejectsSkippingStages(t *testing.T) {
	p := pallet("a", 10)
	assert.ErrorIs(t, p.AdvanceTo(LocationBuffer), ErrInvalidPalletTransition)
	assert.ErrorIs(t, p.AdvanceTo(LocationCompleted), ErrInvalidPalletTransition)
}

func TestPallet_TotalWeight(t *testing.T) {
	p := NewPallet("a", NewProduct("SKU-a", "test", 3.5), 4, 0)
	assert.Equal(t, 14.0, p.TotalWeight())
}
