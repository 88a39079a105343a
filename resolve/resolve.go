// Package resolve reconciles the rates reported by several sources.
package resolve

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	tracker "go-exchange-rate-tracker"
)

// MaxTimestampSpread is how far apart source timestamps may be before the
// older sources are considered stale and only the freshest one is trusted.
const MaxTimestampSpread = time.Hour

// places averaged rates are rounded to
const places = 6

// Resolve reconciles source results into one set of rates.
//
// A single result is used as is. When the newest and oldest results are more
// than MaxTimestampSpread apart only the newest result is used. Otherwise each
// currency is averaged over the results that report it.
// Resolve reports false only when results is empty.
func Resolve(results []tracker.SourceResult) (tracker.ResolvedRates, bool) {
	switch len(results) {
	case 0:
		return tracker.ResolvedRates{}, false
	case 1:
		return only(results[0], tracker.SingleSource), true
	}

	newest, oldest := results[0], results[0]
	for _, r := range results[1:] {
		if r.Timestamp.After(newest.Timestamp) {
			newest = r
		}
		if r.Timestamp.Before(oldest.Timestamp) {
			oldest = r
		}
	}

	if newest.Timestamp.Sub(oldest.Timestamp) > MaxTimestampSpread {
		return only(newest, tracker.FreshestSource), true
	}

	sources := make([]string, 0, len(results))
	for _, r := range results {
		sources = append(sources, r.Source)
	}

	return tracker.ResolvedRates{
		Rates:      Average(results),
		Timestamp:  newest.Timestamp,
		Sources:    sources,
		Resolution: tracker.Averaged,
	}, true
}

func only(r tracker.SourceResult, resolution tracker.Resolution) tracker.ResolvedRates {
	return tracker.ResolvedRates{
		Rates:      r.Rates,
		Timestamp:  r.Timestamp,
		Sources:    []string{r.Source},
		Resolution: resolution,
	}
}

// Average computes the mean rate of every currency present in at least one
// result. A result missing a currency does not count toward its divisor,
// and neither does a NaN or infinite rate.
// Means are rounded half away from zero to 6 decimal places.
func Average(results []tracker.SourceResult) tracker.Rates {
	sums := map[tracker.Currency]decimal.Decimal{}
	counts := map[tracker.Currency]int64{}

	for _, r := range results {
		for currency, rate := range r.Rates {
			if math.IsNaN(float64(rate)) || math.IsInf(float64(rate), 0) {
				continue
			}
			sums[currency] = sums[currency].Add(decimal.NewFromFloat(float64(rate)))
			counts[currency]++
		}
	}

	averaged := make(tracker.Rates, len(sums))
	for currency, sum := range sums {
		mean := sum.Div(decimal.NewFromInt(counts[currency])).Round(places)
		averaged[currency] = tracker.Rate(mean.InexactFloat64())
	}
	return averaged
}
