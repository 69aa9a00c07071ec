package forecast

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/city-forecast/internal/remote"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5/forecast"
	DefaultUnits   = "metric"

	// timestampLayout is the format of the dt_txt field.
	timestampLayout = "2006-01-02 15:04:05"
)

var errMissingAPIKey = errors.New("openweather api key is not configured")

// Client fetches the 5-day / 3-hour forecast from OpenWeatherMap. One request per
// call, no retry, no caching.
type Client struct {
	baseURL   string
	apiKey    string
	units     string
	requester *remote.Requester
	logger    *zap.Logger
}

func NewClient(requester *remote.Requester, baseURL, apiKey, units string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if units == "" {
		units = DefaultUnits
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		units:     units,
		requester: requester,
		logger:    logger,
	}
}

// forecastResponse mirrors the /forecast payload. A missing list is a decode
// failure, an empty one is not.
type forecastResponse struct {
	List *[]forecastEntry `json:"list"`
}

type forecastEntry struct {
	DtTxt string `json:"dt_txt"`
	Main  struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Icon        string `json:"icon"`
		Description string `json:"description"`
	} `json:"weather"`
}

// FetchForecast returns the samples for the coordinates in the order delivered.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64) ([]Sample, error) {
	if c.apiKey == "" {
		return nil, errMissingAPIKey
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("appid", c.apiKey)
	values.Set("units", c.units)

	var payload forecastResponse
	if err := c.requester.GetJSON(ctx, c.baseURL, values, &payload); err != nil {
		return nil, err
	}
	if payload.List == nil {
		return nil, fmt.Errorf("%w: response has no list field", remote.ErrDecode)
	}

	entries := *payload.List
	samples := make([]Sample, 0, len(entries))
	for i, entry := range entries {
		ts, err := time.Parse(timestampLayout, entry.DtTxt)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: dt_txt %q: %v", remote.ErrDecode, i, entry.DtTxt, err)
		}

		s := Sample{
			Timestamp:    ts,
			TemperatureC: entry.Main.Temp,
		}
		if len(entry.Weather) > 0 {
			s.WeatherCode = entry.Weather[0].Icon
			s.WeatherDescription = entry.Weather[0].Description
		}
		samples = append(samples, s)
	}

	c.logger.Debug("forecast fetched",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.Int("samples", len(samples)))

	return samples, nil
}
