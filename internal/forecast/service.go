package forecast

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher is the remote forecast source. *Client implements it.
type Fetcher interface {
	FetchForecast(ctx context.Context, lat, lon float64) ([]Sample, error)
}

// Selection identifies the city picked in the directory.
type Selection struct {
	City string  `validate:"required"`
	Lat  float64 `validate:"gte=-90,lte=90"`
	Lon  float64 `validate:"gte=-180,lte=180"`
}

// DefaultFetchTimeout bounds a shared upstream fetch once no single caller owns it.
const DefaultFetchTimeout = 30 * time.Second

// Service turns a city selection into daily summaries and a map marker.
type Service struct {
	fetcher Fetcher
	timeout time.Duration
	logger  *zap.Logger
	group   singleflight.Group
}

func NewService(fetcher Fetcher, logger *zap.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		timeout: DefaultFetchTimeout,
		logger:  logger,
	}
}

// Forecast fetches and aggregates the forecast for sel. Concurrent calls for the
// same coordinates share one upstream request. The shared request is not tied to
// any caller's context; a caller whose ctx ends stops waiting without affecting
// the others.
func (s *Service) Forecast(ctx context.Context, sel Selection) (CityForecast, error) {
	key := fmt.Sprintf("%.4f,%.4f", sel.Lat, sel.Lon)

	ch := s.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.fetcher.FetchForecast(fetchCtx, sel.Lat, sel.Lon)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		s.logger.Debug("forecast caller gave up",
			zap.String("city", sel.City),
			zap.String("coordinates", key),
			zap.Error(ctx.Err()))
		return CityForecast{}, ctx.Err()
	}

	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		s.logger.Warn("forecast fetch failed",
			zap.String("city", sel.City),
			zap.String("coordinates", key),
			zap.Error(err))
		return CityForecast{}, err
	}

	samples, _ := v.([]Sample)
	days := Aggregate(samples)
	if days == nil {
		days = []DailySummary{}
	}

	s.logger.Debug("forecast aggregated",
		zap.String("city", sel.City),
		zap.Int("samples", len(samples)),
		zap.Int("days", len(days)),
		zap.Bool("shared", shared))

	return CityForecast{
		City: sel.City,
		Marker: Marker{
			Lat:   sel.Lat,
			Lon:   sel.Lon,
			Label: fmt.Sprintf("Weather for %s", sel.City),
		},
		Days: days,
	}, nil
}
