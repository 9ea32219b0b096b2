// Package session drives the two-step conversations that record vehicle
// entries and exits. Each user is either idle or waiting to send a plate;
// one reply string is produced for every event.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/round-cube/parking-attendant/ledger"
	"github.com/round-cube/parking-attendant/pricing"
	"github.com/round-cube/parking-attendant/rates"
)

var ErrInvalidInput = errors.New("vehicle plate is empty")

// Recorder is told about every ledger change. It must not block for long
// and its failures never reach the user.
type Recorder interface {
	EntryRecorded(ctx context.Context, id ledger.VehicleID, entry time.Time)
	ExitCompleted(ctx context.Context, rec pricing.FeeRecord)
}

type Flow struct {
	ledger   ledger.Ledger
	engine   pricing.Engine
	table    *Table
	rates    rates.Source
	recorder Recorder
	now      func() time.Time
	location *time.Location
	symbol   string
	foreign  string
}

type Option func(*Flow)

// WithRates enables the foreign currency line on receipts.
func WithRates(src rates.Source) Option {
	return func(f *Flow) {
		f.rates = src
	}
}

func WithRecorder(r Recorder) Option {
	return func(f *Flow) {
		f.recorder = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		f.now = now
	}
}

func WithLocation(loc *time.Location) Option {
	return func(f *Flow) {
		if loc != nil {
			f.location = loc
		}
	}
}

func WithCurrency(symbol, foreign string) Option {
	return func(f *Flow) {
		f.symbol = symbol
		f.foreign = foreign
	}
}

func NewFlow(l ledger.Ledger, engine pricing.Engine, opts ...Option) *Flow {
	f := &Flow{
		ledger:   l,
		engine:   engine,
		table:    NewTable(),
		now:      time.Now,
		location: time.UTC,
		symbol:   "$",
		foreign:  "USD",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State reports where the user currently is in the conversation.
func (f *Flow) State(userID string) State {
	return f.table.Get(userID)
}

// PendingConversations returns how many users are in the middle of an
// entry or exit.
func (f *Flow) PendingConversations() int {
	return f.table.Len()
}

// Handle applies one event for userID and returns the reply to deliver.
func (f *Flow) Handle(ctx context.Context, userID string, ev Event) string {
	state := f.table.Get(userID)
	log.WithFields(log.Fields{
		"user":    userID,
		"state":   state,
		"trigger": ev.Trigger,
	}).Debug("conversation event")

	switch ev.Trigger {
	case Start:
		f.table.Reset(userID)
		return msgWelcome
	case BeginEntry:
		f.table.Set(userID, AwaitingEntryPlate)
		return msgAskEntryPlate
	case BeginExit:
		f.table.Set(userID, AwaitingExitPlate)
		return msgAskExitPlate
	case Cancel:
		if state == Idle {
			return msgNothingToCancel
		}
		f.table.Reset(userID)
		return msgCancelled
	case TextInput:
		switch state {
		case AwaitingEntryPlate:
			return f.recordEntry(ctx, userID, ev.Text)
		case AwaitingExitPlate:
			return f.processExit(ctx, userID, ev.Text)
		}
	}
	return msgIdleHint
}

func parsePlate(raw string) (ledger.VehicleID, error) {
	id := ledger.NormalizeVehicleID(raw)
	if id.Empty() {
		return "", ErrInvalidInput
	}
	return id, nil
}

func (f *Flow) recordEntry(ctx context.Context, userID, text string) string {
	id, err := parsePlate(text)
	if err != nil {
		return msgEmptyPlate
	}
	f.table.Reset(userID)

	entry := f.now().In(f.location)
	if err := f.ledger.RecordEntry(ctx, id, entry); err != nil {
		log.WithField("vehicle_plate", id).Errorf("failed to record entry: %s", err)
		return msgLedgerUnavailable
	}
	EntriesRecorded.Inc()
	log.WithFields(log.Fields{
		"user":            userID,
		"vehicle_plate":   id,
		"entry_date_time": entry.Format(time.RFC3339),
	}).Info("entry recorded")

	if f.recorder != nil {
		f.recorder.EntryRecorded(ctx, id, entry)
	}
	return fmt.Sprintf("Entry recorded for %s at %s", id, entry.Format(clockLayout))
}

func (f *Flow) processExit(ctx context.Context, userID, text string) string {
	id, err := parsePlate(text)
	if err != nil {
		return msgEmptyPlate
	}
	f.table.Reset(userID)

	exit := f.now().In(f.location)
	entry, err := f.ledger.TakeExit(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		ExitsProcessed.WithLabelValues(outcomeNotFound).Inc()
		log.WithField("vehicle_plate", id).Info("exit requested without open session")
		return msgExitNotFound
	}
	if err != nil {
		ExitsProcessed.WithLabelValues(outcomeError).Inc()
		log.WithField("vehicle_plate", id).Errorf("failed to take exit: %s", err)
		return msgLedgerUnavailable
	}

	rec := pricing.FeeRecord{
		VehicleID: id.String(),
		Entry:     entry,
		Exit:      exit,
		Fee:       f.engine.Compute(entry, exit),
	}
	// The session is already closed here, so a slow rate lookup holds no lock.
	f.convert(ctx, &rec)

	ExitsProcessed.WithLabelValues(outcomeCompleted).Inc()
	ParkingDuration.Observe(float64(rec.Fee.ElapsedSeconds))
	log.WithFields(log.Fields{
		"user":              userID,
		"vehicle_plate":     id,
		"elapsed_seconds":   rec.Fee.ElapsedSeconds,
		"fee":               rec.Fee.FeeLocal,
		"foreign_available": rec.ForeignAvailable,
	}).Info("exit processed")

	if f.recorder != nil {
		f.recorder.ExitCompleted(ctx, rec)
	}
	return Receipt(rec, f.location, f.symbol, f.foreign, f.rates != nil)
}

func (f *Flow) convert(ctx context.Context, rec *pricing.FeeRecord) {
	if f.rates == nil {
		return
	}
	rate, err := f.rates.FetchRate(ctx)
	if err == nil {
		rec.ForeignFee, err = pricing.ConvertToForeign(rec.Fee.FeeLocal, rate)
	}
	if err != nil {
		ReceiptsWithoutConversion.Inc()
		log.WithField("vehicle_plate", rec.VehicleID).Warnf("issuing receipt without %s equivalent: %s", f.foreign, err)
		return
	}
	rec.ForeignAvailable = true
	rec.Rate = rate
}
