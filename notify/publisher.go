// Package notify publishes ledger changes to RabbitMQ so downstream services
// (the receipts auditor) can follow entries and exits.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/round-cube/parking-attendant/ledger"
	"github.com/round-cube/parking-attendant/pricing"
	"github.com/round-cube/parking-attendant/shared"
)

const publishTimeout = 2 * time.Second

// Queue is satisfied by *shared.RMQueue.
type Queue interface {
	Publish(ctx context.Context, body []byte) error
}

type Publisher struct {
	entrances Queue
	exits     Queue
	foreign   string
}

func NewPublisher(entrances, exits Queue, foreignCurrency string) *Publisher {
	return &Publisher{entrances: entrances, exits: exits, foreign: foreignCurrency}
}

func (p *Publisher) EntryRecorded(ctx context.Context, id ledger.VehicleID, entry time.Time) {
	entryID, err := newEventID("ETR:")
	if err != nil {
		log.Errorf("failed to generate entry id: %s", err)
		return
	}
	event := shared.Entrance{
		VehiclePlate:  id.String(),
		EntryDateTime: entry.UTC().Format(time.RFC3339),
		EntryId:       entryID,
		Ts:            time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.publish(ctx, p.entrances, event); err != nil {
		log.WithField("entry_id", entryID).Errorf("failed to publish entrance event: %s", err)
		return
	}
	log.WithFields(log.Fields{
		"vehicle_plate":   event.VehiclePlate,
		"entry_date_time": event.EntryDateTime,
		"entry_id":        event.EntryId,
	}).Debug("entrance published")
}

func (p *Publisher) ExitCompleted(ctx context.Context, rec pricing.FeeRecord) {
	exitID, err := newEventID("EXT:")
	if err != nil {
		log.Errorf("failed to generate exit id: %s", err)
		return
	}
	event := ExitEvent(rec, exitID, p.foreign)
	if err := p.publish(ctx, p.exits, event); err != nil {
		log.WithField("exit_id", exitID).Errorf("failed to publish exit event: %s", err)
		return
	}
	log.WithFields(log.Fields{
		"vehicle_plate":  event.VehiclePlate,
		"exit_date_time": event.ExitDateTime,
		"exit_id":        event.ExitId,
		"fee":            event.Fee,
	}).Debug("exit published")
}

// ExitEvent converts a billed session into its wire form.
func ExitEvent(rec pricing.FeeRecord, exitID, foreignCurrency string) shared.Exit {
	event := shared.Exit{
		VehiclePlate:   rec.VehicleID,
		EntryDateTime:  rec.Entry.UTC().Format(time.RFC3339),
		ExitDateTime:   rec.Exit.UTC().Format(time.RFC3339),
		ElapsedSeconds: rec.Fee.ElapsedSeconds,
		Fee:            rec.Fee.FeeLocal,
		ExitId:         exitID,
		Ts:             time.Now().UTC().Format(time.RFC3339),
	}
	if rec.ForeignAvailable {
		foreign := rec.ForeignFee
		event.ForeignFee = &foreign
		event.ForeignCurrency = foreignCurrency
	}
	return event
}

func (p *Publisher) publish(ctx context.Context, q Queue, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return q.Publish(ctx, body)
}

func newEventID(prefix string) (string, error) {
	v7, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return prefix + v7.String(), nil
}
