package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferZone_InsertRespectsCapacity(t *testing.T) {
	buf := NewBufferZone(2)
	require.NoError(t, buf.Insert(pallet("a", 5)))
	require.NoError(t, buf.Insert(pallet("b", 5)))
	assert.ErrorIs(t, buf.Insert(pallet("c", 5)), ErrBufferFull)
	assert.Equal(t, 2, buf.Count())
}

func TestBufferZone_InsertSetsLocationToBuffer(t *testing.T) {
	buf := NewBufferZone(2)
	p := pallet("a", 5)
	require.NoError(t, buf.Insert(p))
	assert.Equal(t, LocationBuffer, p.Location)
}

func TestBufferZone_FillLevel(t *testing.T) {
	buf := NewBufferZone(4)
	assert.Equal(t, 0.0, buf.FillLevel())
	require.NoError(t, buf.Insert(pallet("a", 5)))
	assert.Equal(t, 0.25, buf.FillLevel())
}

func TestBufferZone_TakeHeaviest_ReturnsAndRemovesHeaviest(t *testing.T) {
	buf := NewBufferZone(3)
	require.NoError(t, buf.Insert(pallet("light", 5)))
	require.NoError(t, buf.Insert(pallet("heavy", 40)))
	require.NoError(t, buf.Insert(pallet("medium", 15)))

	p, err := buf.TakeHeaviest()
	require.NoError(t, err)
	assert.Equal(t, "heavy", p.ID)
	assert.Equal(t, 2, buf.Count())

	_, err = buf.TakeByID("heavy")
	assert.ErrorIs(t, err, ErrPalletNotInBuffer)
}

func TestBufferZone_EnumerateByWeight_DescendingOrder(t *testing.T) {
	buf := NewBufferZone(3)
	require.NoError(t, buf.Insert(pallet("light", 5)))
	require.NoError(t, buf.Insert(pallet("heavy", 40)))
	require.NoError(t, buf.Insert(pallet("medium", 15)))

	out := buf.EnumerateByWeight()
	require.Len(t, out, 3)
	assert.Equal(t, "heavy", out[0].ID)
	assert.Equal(t, "medium", out[1].ID)
	assert.Equal(t, "light", out[2].ID)
	assert.Equal(t, 3, buf.Count(), "enumeration must not remove pallets")
}
