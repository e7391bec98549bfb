package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageZone_QueryNearest_PicksSmallestDistanceForSKU(t *testing.T) {
	s := NewStorageZone()
	far := NewPallet("far", NewProduct("SKU-X", "widget", 5), 1, 100)
	near := NewPallet("near", NewProduct("SKU-X", "widget", 5), 1, 10)
	other := NewPallet("other", NewProduct("SKU-Y", "gadget", 5), 1, 1)
	s.Ingest(far)
	s.Ingest(near)
	s.Ingest(other)

	p, ok := s.QueryNearest("SKU-X")
	require.True(t, ok)
	assert.Equal(t, "near", p.ID)
	assert.Equal(t, 3, s.Count(), "query must not remove the pallet")
}

func TestStorageZone_QueryNearest_MissingSKU(t *testing.T) {
	s := NewStorageZone()
	_, ok := s.QueryNearest("SKU-NONE")
	assert.False(t, ok)
}

func TestStorageZone_TakeByID(t *testing.T) {
	s := NewStorageZone()
	p := pallet("a", 5)
	s.Ingest(p)

	taken, err := s.TakeByID("a")
	require.NoError(t, err)
	assert.Equal(t, p, taken)
	assert.Equal(t, 0, s.Count())

	_, err = s.TakeByID("a")
	assert.ErrorIs(t, err, ErrPalletNotInStorage)
}
