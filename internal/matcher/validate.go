package matcher

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/example/freight-matching/internal/models"
)

var validate = validator.New()

// Validate rejects structurally malformed candidates: missing ids, an
// unknown load source, negative tonnage or prices, or an id that does not
// belong to the route/load pair it carries.
func Validate(c models.Candidate) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if want := models.CandidateID(c.Route.ID, c.Load.ID); c.ID != want {
		return fmt.Errorf("candidate id %q does not match pair %q", c.ID, want)
	}
	return nil
}
