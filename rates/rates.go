// Package rates fetches the exchange rate used to show a foreign currency
// equivalent on exit receipts. Rates are never cached.
package rates

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable wraps every failure to obtain a usable rate.
var ErrUnavailable = errors.New("exchange rate unavailable")

// Source returns a positive rate expressed as local units per foreign unit.
type Source interface {
	FetchRate(ctx context.Context) (float64, error)
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context) (float64, error)

func (f Func) FetchRate(ctx context.Context) (float64, error) {
	return f(ctx)
}

// Static always returns the same rate.
func Static(rate float64) Source {
	return Func(func(context.Context) (float64, error) {
		if rate <= 0 {
			return 0, fmt.Errorf("%w: non-positive static rate %v", ErrUnavailable, rate)
		}
		return rate, nil
	})
}
