package models

import "time"

type RouteStatus string

const (
	RouteAvailable       RouteStatus = "available"
	RoutePartiallyFilled RouteStatus = "partially_filled"
	RouteFull            RouteStatus = "full"
	RouteCompleted       RouteStatus = "completed"
)

type LoadStatus string

const (
	LoadPending   LoadStatus = "pending"   // immediate loads start here
	LoadSearching LoadStatus = "searching" // scheduled loads start here
	LoadMatched   LoadStatus = "matched"
	LoadInTransit LoadStatus = "in_transit"
	LoadDelivered LoadStatus = "delivered"
)

// LoadSource is the provenance tag of a load: which collection it was read from.
type LoadSource string

const (
	SourceImmediate LoadSource = "immediate"
	SourceScheduled LoadSource = "scheduled"
)

// Valid reports whether s is one of the known sources.
func (s LoadSource) Valid() bool {
	return s == SourceImmediate || s == SourceScheduled
}

// OpenStatus is the status a load of this source carries while it still
// wants a match.
func (s LoadSource) OpenStatus() LoadStatus {
	if s == SourceScheduled {
		return LoadSearching
	}
	return LoadPending
}

type MatchStatus string

const MatchConfirmed MatchStatus = "confirmed"

// Route is a driver-published transport capacity offer.
type Route struct {
	ID                    string      `json:"id" db:"id" validate:"required"`
	DriverID              string      `json:"driver_id,omitempty" db:"driver_id"`
	Origin                string      `json:"origin" db:"origin"`
	Destination           string      `json:"destination" db:"destination"`
	DepartureDate         string      `json:"departure_date" db:"departure_date"`
	ReturnDate            *string     `json:"return_date,omitempty" db:"return_date"`
	AvailableCapacityTons float64     `json:"available_capacity_tons" db:"available_capacity_tons" validate:"gte=0"`
	PricePerTon           *float64    `json:"price_per_ton,omitempty" db:"price_per_ton" validate:"omitempty,gte=0"`
	Status                RouteStatus `json:"status" db:"status"`
}

// Load is a shipper's freight request. Immediate and scheduled loads share
// this shape; Source records which one it is and decides which price field
// is meaningful (OfferedPrice for immediate, MaxBudget for scheduled).
type Load struct {
	ID           string     `json:"id" db:"id" validate:"required"`
	ShipperID    string     `json:"shipper_id,omitempty" db:"shipper_id"`
	Source       LoadSource `json:"source" db:"source" validate:"oneof=immediate scheduled"`
	Origin       string     `json:"origin" db:"origin"`
	Destination  string     `json:"destination" db:"destination"`
	PickupDate   string     `json:"pickup_date" db:"pickup_date"`
	CargoType    string     `json:"cargo_type,omitempty" db:"cargo_type"`
	WeightTons   float64    `json:"weight_tons" db:"weight_tons" validate:"gte=0"`
	OfferedPrice *float64   `json:"offered_price,omitempty" db:"offered_price" validate:"omitempty,gte=0"`
	MaxBudget    *float64   `json:"max_budget,omitempty" db:"max_budget" validate:"omitempty,gte=0"`
	Status       LoadStatus `json:"status" db:"status"`
}

// NewImmediateLoad tags l as coming from the immediate collection and drops
// the scheduled-only budget field.
func NewImmediateLoad(l Load) Load {
	l.Source = SourceImmediate
	l.MaxBudget = nil
	return l
}

// NewScheduledLoad tags l as coming from the scheduled collection and drops
// the immediate-only offered price.
func NewScheduledLoad(l Load) Load {
	l.Source = SourceScheduled
	l.OfferedPrice = nil
	return l
}

// PriceHint returns the price the shipper attached to the load, if any.
// Zero is treated as absent.
func (l Load) PriceHint() (float64, bool) {
	var p *float64
	switch l.Source {
	case SourceScheduled:
		p = l.MaxBudget
	default:
		p = l.OfferedPrice
	}
	if p == nil || *p <= 0 {
		return 0, false
	}
	return *p, true
}

// Match is the persisted result of a committed candidate.
type Match struct {
	ID             string      `json:"id" db:"id"`
	CandidateID    string      `json:"candidate_id" db:"candidate_id"`
	RouteID        string      `json:"route_id" db:"route_id"`
	LoadID         *string     `json:"load_id" db:"load_id"` // nil for scheduled loads
	LoadSource     LoadSource  `json:"load_source" db:"load_source"`
	Status         MatchStatus `json:"status" db:"status"`
	SuggestedPrice float64     `json:"suggested_price" db:"suggested_price"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// Candidate is a scored, unconfirmed route/load pairing.
type Candidate struct {
	ID      string   `json:"id" validate:"required"`
	Route   Route    `json:"route"`
	Load    Load     `json:"load"`
	Score   int      `json:"score" validate:"gte=0,lte=100"`
	Reasons []string `json:"reasons"`
}

// CandidateID builds the synthetic id of a route/load pairing.
func CandidateID(routeID, loadID string) string {
	return routeID + "-" + loadID
}

// MatchNotice is pushed to the driver and shipper of a confirmed match.
type MatchNotice struct {
	MatchID        string  `json:"match_id"`
	CandidateID    string  `json:"candidate_id"`
	Role           string  `json:"role"` // driver or shipper
	Origin         string  `json:"origin"`
	Destination    string  `json:"destination"`
	Date           string  `json:"date"`
	SuggestedPrice float64 `json:"suggested_price"`
}

// Orphan is a route or load left claimed without a match row.
type Orphan struct {
	Kind   string `json:"kind" db:"kind"` // route or load
	ID     string `json:"id" db:"id"`
	Source string `json:"source,omitempty" db:"source"`
	Status string `json:"status" db:"status"`
}
