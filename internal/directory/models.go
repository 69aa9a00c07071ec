package directory

import (
	"fmt"
	"net/url"
	"strconv"
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// City is one record of the remote city dataset. Records are never modified after decoding.
type City struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name"`
	Country     string      `json:"country"`
	CountryCode string      `json:"countryCode,omitempty"`
	Timezone    string      `json:"timezone"`
	Population  int         `json:"population,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
}

// ForecastPath returns the route a presentation layer uses to open the forecast view
// for this city: /weather/{name}/{lat}/{lon}.
func (c City) ForecastPath() string {
	return fmt.Sprintf("/weather/%s/%s/%s",
		url.PathEscape(c.Name),
		strconv.FormatFloat(c.Coordinates.Lat, 'f', -1, 64),
		strconv.FormatFloat(c.Coordinates.Lon, 'f', -1, 64),
	)
}

// Mode tells whether the directory is browsing pages or showing search results.
type Mode string

const (
	ModeBrowsing  Mode = "browsing"
	ModeSearching Mode = "searching"
)

// Snapshot is a point-in-time copy of a controller's state.
type Snapshot struct {
	Mode        Mode
	Term        string
	Cities      []City
	Accumulated int
	PageSize    int
	Loading     bool
	Exhausted   bool
	Err         error
}
