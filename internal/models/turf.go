package models

import "time"

// Turf is reference data owned by administration; the engine only reads it.
type Turf struct {
	ID           int64     `yaml:"id" json:"id"`
	Name         string    `yaml:"name" json:"name"`
	LocationName string    `yaml:"location" json:"location"`
	ServiceName  string    `yaml:"service" json:"service"`
	IsAvailable  bool      `yaml:"is_available" json:"is_available"`
	SortOrder    int64     `yaml:"sort_order" json:"sort_order"`
	CreatedAt    time.Time `yaml:"-" json:"created_at"`
	UpdatedAt    time.Time `yaml:"-" json:"updated_at"`
}

// HourlyPrice maps one bookable hour of a turf to its price in whole
// currency units. Hours without a row (or with price <= 0) are not bookable.
type HourlyPrice struct {
	ID     int64 `yaml:"-" json:"id"`
	TurfID int64 `yaml:"turf_id" json:"turf_id"`
	Hour   int   `yaml:"hour" json:"hour"`
	Price  int64 `yaml:"price" json:"price"`
}
