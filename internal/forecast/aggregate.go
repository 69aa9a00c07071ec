package forecast

import "time"

// MaxDays is the forecast horizon shown to users.
const MaxDays = 5

// Aggregate reduces the samples to at most MaxDays daily summaries.
func Aggregate(samples []Sample) []DailySummary {
	return AggregateDays(samples, MaxDays)
}

// AggregateDays groups samples by calendar day in the order days first appear,
// keeps the first n days and picks the 12:00 sample of each as its representative.
// Days past the n-th are dropped, not merged. A day without a 12:00 sample is still
// returned, with no reading.
func AggregateDays(samples []Sample, n int) []DailySummary {
	if n <= 0 || len(samples) == 0 {
		return nil
	}

	type dayKey string

	var (
		order  []dayKey
		groups = make(map[dayKey][]Sample)
	)

	for _, s := range samples {
		k := dayKey(s.Timestamp.Format("2006-01-02"))
		if _, seen := groups[k]; !seen {
			if len(order) == n {
				// Later samples can only open further days; the horizon is full.
				continue
			}
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}

	days := make([]DailySummary, 0, len(order))
	for _, k := range order {
		group := groups[k]
		first := group[0].Timestamp
		date := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, first.Location())

		summary := DailySummary{
			Date:    date,
			Weekday: date.Weekday().String(),
		}
		if rep, ok := midday(group); ok {
			temp := rep.TemperatureC
			summary.Representative = &rep
			summary.TemperatureC = &temp
			summary.WeatherCode = rep.WeatherCode
			summary.WeatherDescription = rep.WeatherDescription
			summary.IconURL = iconURL(rep.WeatherCode)
		}
		days = append(days, summary)
	}

	return days
}

// midday returns the first sample stamped exactly 12:00:00.
func midday(group []Sample) (Sample, bool) {
	for _, s := range group {
		ts := s.Timestamp
		if ts.Hour() == 12 && ts.Minute() == 0 && ts.Second() == 0 {
			return s, true
		}
	}
	return Sample{}, false
}
