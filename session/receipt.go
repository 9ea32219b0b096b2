package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/round-cube/parking-attendant/pricing"
)

const clockLayout = "15:04:05"

const (
	msgWelcome           = "Welcome to the parking attendant.\nChoose an option: Entry or Exit."
	msgAskEntryPlate     = "Send the plate of the vehicle that is entering:"
	msgAskExitPlate      = "Send the plate of the vehicle that is leaving:"
	msgEmptyPlate        = "The plate cannot be empty. Send the plate again or /cancel."
	msgCancelled         = "Operation cancelled."
	msgNothingToCancel   = "There is no operation in progress."
	msgIdleHint          = "Choose an option first: Entry or Exit."
	msgExitNotFound      = "No entry was recorded for that plate."
	msgLedgerUnavailable = "The parking ledger is unavailable right now. Please try again."
)

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// Receipt renders an exit for the user. Times are shown in loc.
func Receipt(rec pricing.FeeRecord, loc *time.Location, symbol, foreign string, conversionEnabled bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plate: %s\n", rec.VehicleID)
	fmt.Fprintf(&b, "Entry: %s\n", rec.Entry.In(loc).Format(clockLayout))
	fmt.Fprintf(&b, "Exit: %s\n", rec.Exit.In(loc).Format(clockLayout))
	if rec.Fee.BilledHours > 0 {
		fmt.Fprintf(&b, "Time: %s (%d hour(s) billed)\n", formatElapsed(rec.Fee.Elapsed()), rec.Fee.BilledHours)
	} else {
		fmt.Fprintf(&b, "Time: %s\n", formatElapsed(rec.Fee.Elapsed()))
	}
	fmt.Fprintf(&b, "Total: %s%.2f", symbol, rec.Fee.FeeLocal)
	if !conversionEnabled {
		return b.String()
	}
	if rec.ForeignAvailable {
		fmt.Fprintf(&b, "\n%s equivalent: %.2f (rate %.2f)", foreign, rec.ForeignFee, rec.Rate)
	} else {
		fmt.Fprintf(&b, "\n%s equivalent unavailable: exchange rate could not be fetched", foreign)
	}
	return b.String()
}
