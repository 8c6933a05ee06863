package ai

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resolver turns a coordinate pair into a best-effort address.
type Resolver interface {
	Resolve(ctx context.Context, lat, lng float64, lang Language) (GeoDetails, error)
}

type resolverChain struct {
	primary  Resolver
	fallback Resolver
}

// WithFallback returns a resolver that first tries the primary implementation and
// falls back to the provided resolver when the primary fails.
func WithFallback(primary, fallback Resolver) Resolver {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &resolverChain{primary: primary, fallback: fallback}
}

func (c *resolverChain) Resolve(ctx context.Context, lat, lng float64, lang Language) (GeoDetails, error) {
	details, err := c.primary.Resolve(ctx, lat, lng, lang)
	if err == nil {
		return details, nil
	}
	logrus.WithError(err).WithFields(logrus.Fields{
		"lat": lat,
		"lng": lng,
	}).Warn("coordinate lookup failed; falling back")
	return c.fallback.Resolve(ctx, lat, lng, lang)
}

// CoordinateFallback formats the coordinates themselves as the address.
type CoordinateFallback struct{}

func (CoordinateFallback) Resolve(_ context.Context, lat, lng float64, _ Language) (GeoDetails, error) {
	return GeoDetails{Address: fmt.Sprintf("%.4f, %.4f", lat, lng), OwnerName: ""}, nil
}

// ModelResolver asks the model for the address at a coordinate pair.
type ModelResolver struct {
	Model Model
}

func (r ModelResolver) Resolve(ctx context.Context, lat, lng float64, lang Language) (GeoDetails, error) {
	if r.Model == nil || !r.Model.Enabled() {
		return GeoDetails{}, ErrDisabled
	}
	raw, err := r.Model.Generate(ctx, BuildGeocodeRequest(lat, lng, lang))
	if err != nil {
		return GeoDetails{}, err
	}
	return ParseGeoDetails(raw)
}
