package events

import "time"

const (
	TypeMatchConfirmed = "match.confirmed"
	TypeMatchPartial   = "match.partial"
)

// MatchEvent is the payload published on the match topic.
type MatchEvent struct {
	Type           string    `json:"type"`
	MatchID        string    `json:"match_id,omitempty"`
	CandidateID    string    `json:"candidate_id"`
	RouteID        string    `json:"route_id"`
	LoadID         string    `json:"load_id"`
	LoadSource     string    `json:"load_source"`
	DriverID       string    `json:"driver_id,omitempty"`
	ShipperID      string    `json:"shipper_id,omitempty"`
	SuggestedPrice float64   `json:"suggested_price,omitempty"`
	Step           string    `json:"step,omitempty"`
	Error          string    `json:"error,omitempty"`
	At             time.Time `json:"at"`
}
