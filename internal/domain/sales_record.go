package domain

import (
	"time"

	"github.com/google/uuid"
)

// Sales channel values observed in source files.
const (
	SalesChannelOnline  = "Online"
	SalesChannelOffline = "Offline"
)

// Order priority codes observed in source files.
const (
	OrderPriorityLow      = "L"
	OrderPriorityMedium   = "M"
	OrderPriorityHigh     = "H"
	OrderPriorityCritical = "C"
)

// SalesRecord is one ingested row of a sales data file. The pair
// (OrderID, UserID) is the natural key: re-ingesting the same order for the
// same owner updates the existing record instead of duplicating it.
//
// Numeric fields are float64 so that a malformed source value can be carried
// through as NaN without discarding the rest of the row.
type SalesRecord struct {
	ID            uuid.UUID  `json:"id"`
	Region        string     `json:"region"`
	Country       string     `json:"country"`
	ItemType      string     `json:"item_type"`
	SalesChannel  string     `json:"sales_channel"`
	OrderPriority string     `json:"order_priority"`
	OrderDate     *time.Time `json:"order_date,omitempty"`
	OrderID       int64      `json:"order_id"`
	ShipDate      *time.Time `json:"ship_date,omitempty"`
	UnitsSold     float64    `json:"units_sold"`
	UnitPrice     float64    `json:"unit_price"`
	UnitCost      float64    `json:"unit_cost"`
	TotalRevenue  float64    `json:"total_revenue"`
	TotalCost     float64    `json:"total_cost"`
	TotalProfit   float64    `json:"total_profit"`
	UserID        uuid.UUID  `json:"user_id"`
	FileEntryID   *uuid.UUID `json:"file_entry_id,omitempty"`
}

// HasNaturalKey reports whether the record carries a usable order identifier.
// Records without one cannot be deduplicated and are rejected by the store
// layer instead of aborting the batch they arrived in.
func (r SalesRecord) HasNaturalKey() bool {
	return r.OrderID != 0 && r.UserID != uuid.Nil
}
