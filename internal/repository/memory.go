package repository

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type MemoryCacheRepository struct {
	entries    sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemoryCacheRepository(ttl time.Duration) *MemoryCacheRepository {
	return &MemoryCacheRepository{
		ttl: ttl,
	}
}

type availabilityEntry struct {
	hours     []int
	expiresAt time.Time
}

func memoryKey(turfID int64, date string) string {
	return fmt.Sprintf("%d:%s", turfID, date)
}

func (r *MemoryCacheRepository) GetAvailability(ctx context.Context, turfID int64, date string) ([]int, bool, error) {
	val, ok := r.entries.Load(memoryKey(turfID, date))
	if !ok {
		return nil, false, nil
	}
	entry := val.(*availabilityEntry)
	if time.Now().After(entry.expiresAt) {
		r.entries.Delete(memoryKey(turfID, date))
		return nil, false, nil
	}
	hours := append([]int(nil), entry.hours...)
	return hours, true, nil
}

func (r *MemoryCacheRepository) SetAvailability(ctx context.Context, turfID int64, date string, hours []int) error {
	entry := &availabilityEntry{
		hours:     append([]int(nil), hours...),
		expiresAt: time.Now().Add(r.ttl),
	}
	r.entries.Store(memoryKey(turfID, date), entry)
	return nil
}

func (r *MemoryCacheRepository) InvalidateAvailability(ctx context.Context, turfID int64, date string) error {
	r.entries.Delete(memoryKey(turfID, date))
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
