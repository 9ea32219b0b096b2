// Package pricing turns a parking session into a fee.
//
// Two billing policies exist. PolicyRoundUp charges every started hour with a
// one hour minimum. PolicyProRata charges elapsed time continuously and
// rounds to cents. The attendant picks one through configuration.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var ErrInvalidRate = errors.New("exchange rate must be positive")

type Policy string

const (
	PolicyRoundUp Policy = "round_up"
	PolicyProRata Policy = "pro_rata"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyRoundUp, PolicyProRata:
		return p, nil
	}
	return "", fmt.Errorf("unknown billing policy %q (want %s or %s)", s, PolicyRoundUp, PolicyProRata)
}

type FeeResult struct {
	ElapsedSeconds int64
	// BilledHours is the number of whole hours charged under PolicyRoundUp
	// and zero under PolicyProRata.
	BilledHours int64
	FeeLocal    float64
}

func (r FeeResult) Elapsed() time.Duration {
	return time.Duration(r.ElapsedSeconds) * time.Second
}

// ComputeFee bills the interval between entry and exit. An exit before the
// entry (clock skew) counts as zero elapsed time.
func ComputeFee(entry, exit time.Time, ratePerHour float64, policy Policy) FeeResult {
	elapsed := exit.Sub(entry)
	if elapsed < 0 {
		elapsed = 0
	}
	res := FeeResult{ElapsedSeconds: int64(elapsed / time.Second)}

	switch policy {
	case PolicyProRata:
		res.FeeLocal = roundCents(elapsed.Hours() * ratePerHour)
	default:
		hours := int64(elapsed / time.Hour)
		if elapsed%time.Hour != 0 {
			hours++
		}
		if hours < 1 {
			hours = 1
		}
		res.BilledHours = hours
		res.FeeLocal = float64(hours) * ratePerHour
	}
	return res
}

// ConvertToForeign expresses a local fee in the currency quoted by rate
// (local units per foreign unit).
func ConvertToForeign(feeLocal, rate float64) (float64, error) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, ErrInvalidRate
	}
	return feeLocal / rate, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Engine carries the configured hourly rate and policy.
type Engine struct {
	RatePerHour float64
	Policy      Policy
}

func (e Engine) Compute(entry, exit time.Time) FeeResult {
	return ComputeFee(entry, exit, e.RatePerHour, e.Policy)
}

// FeeRecord is everything a receipt shows. ForeignFee and Rate are zero
// when ForeignAvailable is false.
type FeeRecord struct {
	VehicleID        string
	Entry            time.Time
	Exit             time.Time
	Fee              FeeResult
	ForeignAvailable bool
	ForeignFee       float64
	Rate             float64
}
