package directory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/i474232898/city-forecast/internal/remote"
)

const (
	DefaultBaseURL = "https://public.opendatasoft.com/api/records/1.0/search/"
	DefaultDataset = "geonames-all-cities-with-a-population-1000"
)

var errInvalidQuery = errors.New("invalid directory query")

// Client reads the remote city dataset. Every call issues exactly one request;
// there is no caching and no retry at this layer.
type Client struct {
	baseURL   string
	dataset   string
	requester *remote.Requester
	logger    *zap.Logger
}

func NewClient(requester *remote.Requester, baseURL, dataset string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if dataset == "" {
		dataset = DefaultDataset
	}
	return &Client{
		baseURL:   baseURL,
		dataset:   dataset,
		requester: requester,
		logger:    logger,
	}
}

// searchResponse mirrors the records API payload. Records is a pointer so a body
// without the field can be told apart from an empty result.
type searchResponse struct {
	Records *[]record `json:"records"`
}

type record struct {
	RecordID string `json:"recordid"`
	Fields   struct {
		Name        string    `json:"name"`
		Country     string    `json:"cou_name_en"`
		CountryCode string    `json:"country_code"`
		Timezone    string    `json:"timezone"`
		Population  int       `json:"population"`
		Coordinates []float64 `json:"coordinates"`
	} `json:"fields"`
}

// FetchPage returns the records in [offset, offset+limit) in server order.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) ([]City, error) {
	if offset < 0 || limit < 1 {
		return nil, fmt.Errorf("%w: offset=%d limit=%d", errInvalidQuery, offset, limit)
	}

	values := url.Values{}
	values.Set("dataset", c.dataset)
	values.Set("rows", strconv.Itoa(limit))
	values.Set("start", strconv.Itoa(offset))

	return c.query(ctx, values)
}

// FetchMatching returns up to maxResults records matching term.
func (c *Client) FetchMatching(ctx context.Context, term string, maxResults int) ([]City, error) {
	if term == "" || maxResults < 1 {
		return nil, fmt.Errorf("%w: term=%q maxResults=%d", errInvalidQuery, term, maxResults)
	}

	values := url.Values{}
	values.Set("dataset", c.dataset)
	values.Set("rows", strconv.Itoa(maxResults))
	values.Set("q", term)

	return c.query(ctx, values)
}

func (c *Client) query(ctx context.Context, values url.Values) ([]City, error) {
	var payload searchResponse
	if err := c.requester.GetJSON(ctx, c.baseURL, values, &payload); err != nil {
		return nil, err
	}
	if payload.Records == nil {
		return nil, fmt.Errorf("%w: response has no records field", remote.ErrDecode)
	}

	records := *payload.Records
	cities := make([]City, 0, len(records))
	for i, rec := range records {
		if len(rec.Fields.Coordinates) != 2 {
			return nil, fmt.Errorf("%w: record %d (%q) has %d coordinates",
				remote.ErrDecode, i, rec.Fields.Name, len(rec.Fields.Coordinates))
		}
		cities = append(cities, City{
			ID:          rec.RecordID,
			Name:        rec.Fields.Name,
			Country:     rec.Fields.Country,
			CountryCode: rec.Fields.CountryCode,
			Timezone:    rec.Fields.Timezone,
			Population:  rec.Fields.Population,
			Coordinates: Coordinates{
				Lat: rec.Fields.Coordinates[0],
				Lon: rec.Fields.Coordinates[1],
			},
		})
	}

	c.logger.Debug("directory query completed",
		zap.String("rows", values.Get("rows")),
		zap.String("start", values.Get("start")),
		zap.String("q", values.Get("q")),
		zap.Int("records", len(cities)))

	return cities, nil
}
