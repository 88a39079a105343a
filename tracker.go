// Package tracker holds the value types shared by the rate aggregation pipeline.
package tracker

import "time"

// Currency a currency code
type Currency string

// Rate an exchange rate relative to the base currency
type Rate float64

// Rates maps a currency code to its rate.
// Rates are built once and only read afterwards.
type Rates map[Currency]Rate

// Resolution the strategy used to reconcile the rates of several sources
type Resolution string

const (
	SingleSource   Resolution = "single-source"
	FreshestSource Resolution = "freshest-source"
	Averaged       Resolution = "averaged"
)

// SourceResult the normalized outcome of one successful provider fetch
type SourceResult struct {
	Rates Rates
	// Timestamp the provider's stated data time
	Timestamp time.Time
	// Source identifier of the provider
	Source string
}

// ResolvedRates the reconciled rates served to clients
type ResolvedRates struct {
	Rates Rates
	// Timestamp the newest timestamp among the sources actually used
	Timestamp time.Time
	// Sources contributing provider ids, in provider configuration order
	Sources    []string
	Resolution Resolution
}

// Filter returns the subset of rates whose currency is in targets.
func (r Rates) Filter(targets []Currency) Rates {
	filtered := make(Rates, len(targets))
	for _, c := range targets {
		if rate, ok := r[c]; ok {
			filtered[c] = rate
		}
	}
	return filtered
}

// Clone returns a copy of the rates.
func (r Rates) Clone() Rates {
	if r == nil {
		return nil
	}
	clone := make(Rates, len(r))
	for c, rate := range r {
		clone[c] = rate
	}
	return clone
}
