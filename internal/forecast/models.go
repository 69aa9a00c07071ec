package forecast

import (
	"fmt"
	"time"
)

// Sample is one 3-hour forecast entry. Timestamp keeps the wall-clock value the
// provider delivered; it is never converted to another zone.
type Sample struct {
	Timestamp          time.Time `json:"timestamp"`
	TemperatureC       float64   `json:"temperatureC"`
	WeatherCode        string    `json:"weatherCode"`
	WeatherDescription string    `json:"weatherDescription"`
}

// DailySummary is the representative reading of one calendar day.
// Representative is nil when the day has no midday sample; the reading fields are
// then empty and only the date is meaningful.
type DailySummary struct {
	Date               time.Time `json:"date"`
	Weekday            string    `json:"weekday"`
	Representative     *Sample   `json:"representative,omitempty"`
	TemperatureC       *float64  `json:"temperatureC,omitempty"`
	WeatherCode        string    `json:"weatherCode,omitempty"`
	WeatherDescription string    `json:"weatherDescription,omitempty"`
	IconURL            string    `json:"iconUrl,omitempty"`
}

// HasReading reports whether a midday sample was found for the day.
func (d DailySummary) HasReading() bool {
	return d.Representative != nil
}

// Marker positions the selected city on a map.
type Marker struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label string  `json:"label"`
}

// CityForecast is everything the forecast view needs for one selected city.
type CityForecast struct {
	City   string         `json:"city"`
	Marker Marker         `json:"marker"`
	Days   []DailySummary `json:"days"`
}

// iconURL returns the OpenWeatherMap icon image for a weather code.
func iconURL(code string) string {
	if code == "" {
		return ""
	}
	return fmt.Sprintf("https://openweathermap.org/img/wn/%s@2x.png", code)
}
