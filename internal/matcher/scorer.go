package matcher

import (
	"strings"

	"github.com/example/freight-matching/internal/models"
)

const (
	exactPlacePoints  = 40
	nearbyPlacePoints = 20
	capacityPoints    = 10
	sameDatePoints    = 10
	closeDatePoints   = 5

	sameDateMaxDays  = 1
	closeDateMaxDays = 3
)

const (
	ReasonSameOrigin           = "same origin"
	ReasonNearbyOrigin         = "nearby origin"
	ReasonSameDestination      = "same destination"
	ReasonNearbyDestination    = "nearby destination"
	ReasonSufficientCapacity   = "sufficient capacity"
	ReasonInsufficientCapacity = "insufficient capacity"
	ReasonDatesMatch           = "dates match"
	ReasonDatesClose           = "dates close"
)

type placeMatch int

const (
	placeNone placeMatch = iota
	placeNearby
	placeExact
)

// Score rates how well a route can carry a load, 0 to 100, along with the
// reasons in fixed order: origin, destination, capacity, date.
// It never fails: empty places and unparsable dates simply earn nothing.
func Score(r models.Route, l models.Load) (int, []string) {
	score := 0
	reasons := make([]string, 0, 4)

	switch comparePlaces(r.Origin, l.Origin) {
	case placeExact:
		score += exactPlacePoints
		reasons = append(reasons, ReasonSameOrigin)
	case placeNearby:
		score += nearbyPlacePoints
		reasons = append(reasons, ReasonNearbyOrigin)
	}

	switch comparePlaces(r.Destination, l.Destination) {
	case placeExact:
		score += exactPlacePoints
		reasons = append(reasons, ReasonSameDestination)
	case placeNearby:
		score += nearbyPlacePoints
		reasons = append(reasons, ReasonNearbyDestination)
	}

	// a load without weight always fits
	if r.AvailableCapacityTons >= l.WeightTons || l.WeightTons <= 0 {
		score += capacityPoints
		reasons = append(reasons, ReasonSufficientCapacity)
	} else {
		reasons = append(reasons, ReasonInsufficientCapacity)
	}

	if days, ok := models.DaysApart(r.DepartureDate, l.PickupDate); ok {
		switch {
		case days <= sameDateMaxDays:
			score += sameDatePoints
			reasons = append(reasons, ReasonDatesMatch)
		case days <= closeDateMaxDays:
			score += closeDatePoints
			reasons = append(reasons, ReasonDatesClose)
		}
	}

	return score, reasons
}

func comparePlaces(a, b string) placeMatch {
	if a == "" || b == "" {
		return placeNone
	}
	if a == b {
		return placeExact
	}
	if containsLeadingSegment(a, b) || containsLeadingSegment(b, a) {
		return placeNearby
	}
	return placeNone
}

// containsLeadingSegment reports whether s contains the part of other before
// its first comma. A blank segment never matches.
func containsLeadingSegment(s, other string) bool {
	seg, _, _ := strings.Cut(other, ",")
	if strings.TrimSpace(seg) == "" {
		return false
	}
	return strings.Contains(s, seg)
}
