package testkit

import (
	"time"

	"github.com/wms-platform/scheduler-core/internal/domain"
)

// NewPallet builds a pallet of weightKg total, at the given storage
// distance, for use in stream and optimizer tests that only care about
// weight ordering and distance.
func NewPallet(id string, weightKg, storageDistanceM float64) *domain.Pallet {
	product := domain.NewProduct("SKU-"+id, "test product", weightKg)
	return domain.NewPallet(id, product, 1, storageDistanceM)
}

// NewTask builds a Pending delivery task over a fresh single-weight pallet.
func NewTask(id string, weightKg, storageDistanceM float64, createdAt time.Time) *domain.DeliveryTask {
	return domain.NewDeliveryTask(id, NewPallet(id, weightKg, storageDistanceM), createdAt)
}

// NewForklift builds an idle forklift at position 0.
func NewForklift(id string, speedMPerS float64) *domain.Forklift {
	return domain.NewForklift(id, "", speedMPerS, 10)
}
