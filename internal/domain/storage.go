package domain

import (
	"errors"
	"sync"
)

var ErrPalletNotInStorage = errors.New("pallet not found in storage")

// StorageZone is the large, unordered pallet reserve. Pallets carry
// their own distance-from-buffer annotation.
type StorageZone struct {
	mu      sync.Mutex
	pallets map[string]*Pallet
}

// NewStorageZone creates an empty storage zone.
func NewStorageZone() *StorageZone {
	return &StorageZone{pallets: make(map[string]*Pallet)}
}

// Ingest adds a newly received pallet to storage.
func (s *StorageZone) Ingest(p *Pallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pallets[p.ID] = p
}

// TakeByID removes and returns the pallet with the given id.
func (s *StorageZone) TakeByID(id string) (*Pallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pallets[id]
	if !ok {
		return nil, ErrPalletNotInStorage
	}
	delete(s.pallets, id)
	return p, nil
}

// QueryNearest returns the pallet of the given SKU with the smallest
// storage_distance_m, without removing it.
func (s *StorageZone) QueryNearest(sku string) (*Pallet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var nearest *Pallet
	for _, p := range s.pallets {
		if p.Product.SKU != sku {
			continue
		}
		if nearest == nil || p.StorageDistanceM < nearest.StorageDistanceM {
			nearest = p
		}
	}
	return nearest, nearest != nil
}

// Count returns the number of pallets currently in storage.
func (s *StorageZone) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pallets)
}
