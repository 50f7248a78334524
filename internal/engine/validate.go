package engine

import (
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/taxcore/internal/tax"
)

// ErrInvalidRequest wraps every request validation problem.
var ErrInvalidRequest = errors.New("engine: invalid request")

var validate = validator.New()

// ValidateRequest checks field constraints and the references between request collections.
// Rules assume these hold and panic otherwise.
func ValidateRequest(req *tax.Request) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	var errs error
	for i, itin := range req.Itins {
		if itin.GeoPathRef >= len(req.GeoPaths) {
			errs = errors.Join(errs, fmt.Errorf("itin %d: geo path %d does not exist", i, itin.GeoPathRef))
			continue
		}
		if itin.PointOfSaleRef >= len(req.PointsOfSale) {
			errs = errors.Join(errs, fmt.Errorf("itin %d: point of sale %d does not exist", i, itin.PointOfSaleRef))
		}
		if itin.PassengerRef >= len(req.Passengers) {
			errs = errors.Join(errs, fmt.Errorf("itin %d: passenger %d does not exist", i, itin.PassengerRef))
		}
		for _, usage := range itin.FlightUsages {
			if usage.FlightRef >= len(req.Flights) {
				errs = errors.Join(errs, fmt.Errorf("itin %d: flight %d does not exist", i, usage.FlightRef))
			}
		}
		path := req.GeoPaths[itin.GeoPathRef]
		if path.Len() == 0 {
			errs = errors.Join(errs, fmt.Errorf("itin %d: empty geo path", i))
			continue
		}
		if len(itin.FlightUsages) > 0 && path.Len() != 2*len(itin.FlightUsages) {
			errs = errors.Join(errs, fmt.Errorf("itin %d: geo path has %d geos for %d flights", i, path.Len(), len(itin.FlightUsages)))
		}
		for g, geo := range path.Geos {
			want := tax.GeoDeparture
			if g%2 == 1 {
				want = tax.GeoArrival
			}
			if geo.Type != want {
				errs = errors.Join(errs, fmt.Errorf("itin %d: geo %d must be of type %s", i, g, want))
			}
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, errs)
	}
	return nil
}
