package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightThresholds_Categorize(t *testing.T) {
	t_ := DefaultWeightThresholds()
	assert.Equal(t, WeightLight, t_.Categorize(4.9))
	assert.Equal(t, WeightMedium, t_.Categorize(5))
	assert.Equal(t, WeightMedium, t_.Categorize(19.9))
	assert.Equal(t, WeightHeavy, t_.Categorize(20))
}

func TestNewProduct_DefaultsPriorityFromWeight(t *testing.T) {
	p := NewProduct("SKU-1", "widget", 12.5)
	assert.Equal(t, 125, p.Priority)
	assert.Equal(t, WeightMedium, p.WeightCategory(DefaultWeightThresholds()))
}
