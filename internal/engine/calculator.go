package engine

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/taxcore/internal/tax"
)

// Config wires a Calculator.
type Config struct {
	Services  tax.Services
	Sequences []Sequence
	// Workers bounds how many itineraries are evaluated in parallel. Zero uses GOMAXPROCS.
	Workers  int
	Logger   *zerolog.Logger
	Observer Observer
	Tracer   trace.Tracer
}

// Calculator evaluates tax sequences for every itinerary of a request. Sequences and services
// are shared read-only between itineraries; each itinerary gets its own RawPayments.
type Calculator struct {
	services tax.Services
	groups   []group
	workers  int
	logger   zerolog.Logger
	applier  RuleApplier
	observer Observer
	tracer   trace.Tracer
}

// NewCalculator groups and orders the sequences.
func NewCalculator(cfg Config) (*Calculator, error) {
	if cfg.Services.Locations == nil {
		return nil, errors.New("engine: location service is required")
	}
	groups, err := groupSequences(cfg.Sequences)
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/noah-isme/taxcore/internal/engine")
	}
	return &Calculator{
		services: cfg.Services,
		groups:   groups,
		workers:  workers,
		logger:   logger,
		applier:  RuleApplier{Observer: observer},
		observer: observer,
		tracer:   tracer,
	}, nil
}

// TaxOrder returns the tax names in evaluation order.
func (c *Calculator) TaxOrder() []tax.TaxName {
	names := make([]tax.TaxName, len(c.groups))
	for i, g := range c.groups {
		names[i] = g.name
	}
	return names
}

// Calculate validates the request and evaluates every itinerary. Rule failures never produce
// an error; a failed tax is simply absent from the itinerary result.
func (c *Calculator) Calculate(ctx context.Context, req *tax.Request) (*Response, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resp := &Response{ID: uuid.New(), Itins: make([]ItinResult, len(req.Itins))}
	ctx, span := c.tracer.Start(ctx, "tax.calculate", trace.WithAttributes(
		attribute.String("tax.request_id", resp.ID.String()),
		attribute.Int("tax.itins", len(req.Itins)),
	))
	defer span.End()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i := range req.Itins {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			resp.Itins[i] = c.calculateItin(ctx, req, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return resp, nil
}

func (c *Calculator) calculateItin(ctx context.Context, req *tax.Request, itinIndex int) ItinResult {
	start := time.Now()
	itin := req.Itin(itinIndex)
	_, span := c.tracer.Start(ctx, "tax.itin", trace.WithAttributes(attribute.Int("tax.itin_id", itin.ID)))
	defer span.End()

	result := ItinResult{ItinID: itin.ID}
	path := req.GeoPath(itinIndex)
	payments := tax.NewRawPayments()
	// Stopover classifications are itinerary-wide: every detail starts from what earlier
	// sequences of the itinerary recorded.
	stopovers := make([]tax.TaxPointProperties, path.Len())
	for _, g := range c.groups {
		for _, point := range taxPoints(g.name.TaxPointTag, path) {
			var last *tax.Detail
			for _, seq := range g.sequences {
				detail := newDetail(seq, point, itin, path, stopovers)
				passed := seq.Run(c.applier, itinIndex, req, c.services, payments, detail)
				copyStopovers(stopovers, detail.TaxPointsProperties)
				c.observer.SequenceCompleted(seq.Name, passed)
				last = detail
				if passed {
					break
				}
				failure := newFailure(detail)
				result.Failures = append(result.Failures, failure)
				c.logger.Debug().
					Int("itin_id", itin.ID).
					Str("tax", seq.Name.String()).
					Int("seq_no", seq.SeqNo).
					Int("tax_point", point).
					Str("rule", string(failure.Rule)).
					Str("reason", failure.Message).
					Msg("tax sequence failed")
			}
			if last == nil {
				continue
			}
			if !last.IsFailed() {
				result.Taxes = append(result.Taxes, newTaxResult(last))
			}
			payments.Add(last)
		}
	}
	span.SetAttributes(attribute.Int("tax.applied", len(result.Taxes)))
	c.observer.ItinCompleted(time.Since(start))
	return result
}

func newDetail(seq Sequence, point int, itin *tax.Itin, path *tax.GeoPath, stopovers []tax.TaxPointProperties) *tax.Detail {
	detail := tax.NewDetail(seq.Name, seq.SeqNo, point, path.Len())
	detail.Taxable.Fare = itin.FareAmount
	copyStopovers(detail.TaxPointsProperties, stopovers)
	if !seq.taxesOptionalServices() {
		return detail
	}
	for _, oc := range itin.OptionalServices {
		detail.OptionalServices = append(detail.OptionalServices, tax.OptionalService{
			Code:    oc.Code,
			SubCode: oc.SubCode,
			Type:    oc.Type,
			Amount:  oc.Amount,
		})
	}
	return detail
}

// copyStopovers copies every recorded stopover classification of src into dst.
func copyStopovers(dst, src []tax.TaxPointProperties) {
	for i := range min(len(dst), len(src)) {
		if src[i].IsTimeStopover != nil {
			v := *src[i].IsTimeStopover
			dst[i].IsTimeStopover = &v
		}
	}
}

// taxPoints lists the candidate tax point geos for a tax point tag.
func taxPoints(tag tax.TaxPointTag, path *tax.GeoPath) []int {
	if path.Len() == 0 {
		return nil
	}
	switch tag {
	case tax.TaxPointDeparture, tax.TaxPointArrival:
		var points []int
		for id, geo := range path.Geos {
			if (tag == tax.TaxPointDeparture && geo.IsDeparture()) || (tag == tax.TaxPointArrival && geo.IsArrival()) {
				points = append(points, id)
			}
		}
		return points
	default:
		return []int{0}
	}
}
