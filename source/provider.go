package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	tracker "go-exchange-rate-tracker"
)

// DefaultTimeout bounds a single provider fetch
const DefaultTimeout = 5 * time.Second

// basePlaceholder is replaced by the base currency in provider URL templates
const basePlaceholder = "{base}"

// ErrUnknownKind is returned for a provider kind without a normalizer
var ErrUnknownKind = errors.New("unknown provider kind")

// Kind selects how a provider's response body is normalized
type Kind string

const (
	// KindExchangeRateAPI the v6 "latest" shape served by exchangerate-api and open.er-api
	KindExchangeRateAPI Kind = "exchangerate-api"
	// KindFrankfurter the ECB based frankfurter.app shape
	KindFrankfurter Kind = "frankfurter"
	// KindCoinbase the coinbase v2 exchange-rates shape
	KindCoinbase Kind = "coinbase"
)

// Provider describes one remote rate source
type Provider struct {
	// ID identifies the provider in resolved results and logs
	ID string
	// URL endpoint template, {base} is replaced by the base currency
	URL string
	// Kind of response body the endpoint returns
	Kind Kind
	// Timeout for one fetch, DefaultTimeout when zero
	Timeout time.Duration
}

// Endpoint returns the provider URL for the given base currency.
func (p Provider) Endpoint(base tracker.Currency) string {
	return strings.ReplaceAll(p.URL, basePlaceholder, string(base))
}

func (p Provider) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

// DefaultProviders the free, keyless providers the tracker uses out of the box.
func DefaultProviders() []Provider {
	return []Provider{
		{
			ID:   "exchangerate-api",
			URL:  "https://open.exchangerate-api.com/v6/latest/{base}",
			Kind: KindExchangeRateAPI,
		},
		{
			ID:   "open.er-api",
			URL:  "https://open.er-api.com/v6/latest/{base}",
			Kind: KindExchangeRateAPI,
		},
		{
			ID:   "frankfurter",
			URL:  "https://api.frankfurter.app/latest?from={base}",
			Kind: KindFrankfurter,
		},
	}
}

// Normalized the provider independent content of a response body
type Normalized struct {
	Rates     tracker.Rates
	Timestamp time.Time
}

// Normalizer extracts rates and the data time from a raw response body.
// fetchedAt is used by providers that do not state a data time.
type Normalizer func(body []byte, fetchedAt time.Time) (Normalized, error)

var normalizers = map[Kind]Normalizer{
	KindExchangeRateAPI: normalizeExchangeRateAPI,
	KindFrankfurter:     normalizeFrankfurter,
	KindCoinbase:        normalizeCoinbase,
}

// NormalizerFor returns the normalizer registered for kind.
func NormalizerFor(kind Kind) (Normalizer, error) {
	n, ok := normalizers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return n, nil
}

func normalizeExchangeRateAPI(body []byte, _ time.Time) (Normalized, error) {
	var response struct {
		Result             string             `json:"result"`
		TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
		Rates              map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return Normalized{}, fmt.Errorf("decoding json: %w", err)
	}
	if response.Result != "" && response.Result != "success" {
		return Normalized{}, fmt.Errorf("result=%s", response.Result)
	}
	if response.TimeLastUpdateUnix <= 0 {
		return Normalized{}, errors.New("missing time_last_update_unix")
	}
	rates, err := toRates(response.Rates)
	if err != nil {
		return Normalized{}, err
	}
	return Normalized{
		Rates:     rates,
		Timestamp: time.Unix(response.TimeLastUpdateUnix, 0).UTC(),
	}, nil
}

func normalizeFrankfurter(body []byte, _ time.Time) (Normalized, error) {
	var response struct {
		Base  string             `json:"base"`
		Date  string             `json:"date"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return Normalized{}, fmt.Errorf("decoding json: %w", err)
	}
	date, err := time.Parse(time.DateOnly, response.Date)
	if err != nil {
		return Normalized{}, fmt.Errorf("bad date: %w", err)
	}
	rates, err := toRates(response.Rates)
	if err != nil {
		return Normalized{}, err
	}
	return Normalized{Rates: rates, Timestamp: date}, nil
}

func normalizeCoinbase(body []byte, fetchedAt time.Time) (Normalized, error) {
	type Response struct {
		Data struct {
			Currency string
			Rates    map[string]string // maps currency codes to rates
		}
	}

	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		return Normalized{}, fmt.Errorf("decoding json: %w", err)
	}
	if len(response.Data.Rates) == 0 {
		return Normalized{}, errors.New("missing rates")
	}

	rates := tracker.Rates{}
	for k, v := range response.Data.Rates {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Normalized{}, fmt.Errorf("bad rate value: %w", err)
		}
		if !finite(f) {
			return Normalized{}, fmt.Errorf("bad rate value %q for %s", v, k)
		}
		rates[tracker.Currency(k)] = tracker.Rate(f)
	}

	return Normalized{Rates: rates, Timestamp: fetchedAt}, nil
}

func toRates(raw map[string]float64) (tracker.Rates, error) {
	if len(raw) == 0 {
		return nil, errors.New("missing rates")
	}
	rates := make(tracker.Rates, len(raw))
	for k, v := range raw {
		if !finite(v) {
			return nil, fmt.Errorf("bad rate value %v for %s", v, k)
		}
		rates[tracker.Currency(k)] = tracker.Rate(v)
	}
	return rates, nil
}

// finite rejects NaN and the infinities, which strconv.ParseFloat accepts
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
