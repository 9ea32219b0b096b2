// Package ledger keeps the open parking sessions: which vehicles are inside
// the facility and when each one entered.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by TakeExit when the vehicle has no open session.
var ErrNotFound = errors.New("no open parking session for vehicle")

// VehicleID is a normalized plate. Build it with NormalizeVehicleID.
type VehicleID string

func NormalizeVehicleID(raw string) VehicleID {
	return VehicleID(strings.ToUpper(strings.TrimSpace(raw)))
}

func (v VehicleID) Empty() bool {
	return v == ""
}

func (v VehicleID) String() string {
	return string(v)
}

// Ledger maps vehicles to their entry time. A vehicle is present iff it has an
// open session. Implementations must make TakeExit an indivisible
// check-and-remove so two concurrent exits for one vehicle cannot both succeed.
type Ledger interface {
	// RecordEntry opens a session, overwriting any previous entry time.
	RecordEntry(ctx context.Context, id VehicleID, entry time.Time) error
	// TakeExit closes the session and returns its entry time, or ErrNotFound.
	TakeExit(ctx context.Context, id VehicleID) (time.Time, error)
}
