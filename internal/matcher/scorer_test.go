package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/freight-matching/internal/models"
)

func price(v float64) *float64 { return &v }

func exampleRoute() models.Route {
	return models.Route{
		ID:                    "r1",
		DriverID:              "driver-1",
		Origin:                "Delicias, Chihuahua",
		Destination:           "CDMX - Central de Abasto",
		DepartureDate:         "2025-03-10",
		AvailableCapacityTons: 20,
		PricePerTon:           price(1200),
		Status:                models.RouteAvailable,
	}
}

func exampleLoad() models.Load {
	return models.NewImmediateLoad(models.Load{
		ID:           "l1",
		ShipperID:    "shipper-1",
		Origin:       "Delicias, Chihuahua",
		Destination:  "CDMX - Central de Abasto",
		PickupDate:   "2025-03-10",
		CargoType:    "nuez",
		WeightTons:   10,
		OfferedPrice: price(15000),
		Status:       models.LoadPending,
	})
}

func TestScorePerfectPair(t *testing.T) {
	score, reasons := Score(exampleRoute(), exampleLoad())
	assert.Equal(t, 100, score)
	assert.Equal(t, []string{ReasonSameOrigin, ReasonSameDestination, ReasonSufficientCapacity, ReasonDatesMatch}, reasons)
}

func TestScoreLateHeavyLoad(t *testing.T) {
	l := exampleLoad()
	l.PickupDate = "2025-03-15"
	l.WeightTons = 25

	score, reasons := Score(exampleRoute(), l)
	assert.Equal(t, 80, score)
	assert.Equal(t, []string{ReasonSameOrigin, ReasonSameDestination, ReasonInsufficientCapacity}, reasons)
}

func TestScoreNearbyPlaces(t *testing.T) {
	l := exampleLoad()
	l.Origin = "Delicias"
	l.Destination = "CDMX, Iztapalapa"

	score, reasons := Score(exampleRoute(), l)
	assert.Equal(t, 20+20+10+10, score)
	assert.Equal(t, ReasonNearbyOrigin, reasons[0])
	assert.Equal(t, ReasonNearbyDestination, reasons[1])
}

func TestScoreDateTiers(t *testing.T) {
	cases := map[string]struct {
		pickup string
		points int
		reason string
	}{
		"one day":    {"2025-03-11", 10, ReasonDatesMatch},
		"three days": {"2025-03-07", 5, ReasonDatesClose},
		"four days":  {"2025-03-14", 0, ""},
		"garbage":    {"next tuesday", 0, ""},
		"empty":      {"", 0, ""},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			l := exampleLoad()
			l.PickupDate = c.pickup
			score, reasons := Score(exampleRoute(), l)
			assert.Equal(t, 90+c.points, score)
			if c.reason == "" {
				assert.Len(t, reasons, 3)
			} else {
				assert.Equal(t, c.reason, reasons[3])
			}
		})
	}
}

func TestScoreDisjointPlaces(t *testing.T) {
	r := exampleRoute()
	l := exampleLoad()
	l.Origin = "Monterrey, Nuevo Leon"
	l.Destination = "Guadalajara, Jalisco"
	l.PickupDate = "2025-04-01"

	score, reasons := Score(r, l)
	assert.Equal(t, 10, score)
	assert.Equal(t, []string{ReasonSufficientCapacity}, reasons)

	l.WeightTons = 50
	score, _ = Score(r, l)
	assert.Equal(t, 0, score)
}

func TestScoreEmptyPlacesNeverMatch(t *testing.T) {
	r := exampleRoute()
	r.Origin, r.Destination = "", ""
	l := exampleLoad()
	l.Origin, l.Destination = "", ""

	score, reasons := Score(r, l)
	assert.Equal(t, 20, score)
	assert.Equal(t, []string{ReasonSufficientCapacity, ReasonDatesMatch}, reasons)

	// a leading comma leaves an empty first segment
	r.Origin = ", Chihuahua"
	l.Origin = "Delicias"
	score, _ = Score(r, l)
	assert.Equal(t, 20, score)
}

func TestScoreMissingWeightFits(t *testing.T) {
	r := exampleRoute()
	r.AvailableCapacityTons = 0
	l := exampleLoad()
	l.WeightTons = 0

	_, reasons := Score(r, l)
	assert.Contains(t, reasons, ReasonSufficientCapacity)
}

func TestScoreIsDeterministic(t *testing.T) {
	r, l := exampleRoute(), exampleLoad()
	l.Origin = "Delicias"
	s1, r1 := Score(r, l)
	s2, r2 := Score(r, l)
	assert.Equal(t, s1, s2)
	assert.Equal(t, r1, r2)
}
