package domain

import "time"

// Event is the persisted parent of one or more markets. Event rows exist to
// satisfy referential integrity for market rows; only the mutable lifecycle
// flags are updated on re-sync.
type Event struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Tags        []string   `json:"tags"`
	Volume      float64    `json:"volume"`
	Volume24h   float64    `json:"volume24h"`
	Liquidity   float64    `json:"liquidity"`
	Active      bool       `json:"active"`
	Closed      bool       `json:"closed"`
	Archived    bool       `json:"archived"`
	New         bool       `json:"new"`
	Featured    bool       `json:"featured"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
}
