package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/round-cube/parking-attendant/ledger"
	"github.com/round-cube/parking-attendant/pricing"
	"github.com/round-cube/parking-attendant/rates"
)

var art = time.FixedZone("ART", -3*3600)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type capturingRecorder struct {
	mu      sync.Mutex
	entries []ledger.VehicleID
	exits   []pricing.FeeRecord
}

func (r *capturingRecorder) EntryRecorded(_ context.Context, id ledger.VehicleID, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, id)
}

func (r *capturingRecorder) ExitCompleted(_ context.Context, rec pricing.FeeRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exits = append(r.exits, rec)
}

type brokenLedger struct{}

func (brokenLedger) RecordEntry(context.Context, ledger.VehicleID, time.Time) error {
	return errors.New("connection refused")
}

func (brokenLedger) TakeExit(context.Context, ledger.VehicleID) (time.Time, error) {
	return time.Time{}, errors.New("connection refused")
}

// countingRates counts lookups so tests can tell whether conversion was attempted.
func countingRates(rate float64, err error) (rates.Source, *int32) {
	var calls int32
	return rates.Func(func(context.Context) (float64, error) {
		atomic.AddInt32(&calls, 1)
		return rate, err
	}), &calls
}

type fixture struct {
	flow     *Flow
	ledger   *ledger.Memory
	clock    *fakeClock
	recorder *capturingRecorder
}

func newFixture(policy pricing.Policy, opts ...Option) *fixture {
	fx := &fixture{
		ledger:   ledger.NewMemory(),
		clock:    &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
		recorder: &capturingRecorder{},
	}
	opts = append([]Option{
		WithClock(fx.clock.Now),
		WithLocation(art),
		WithRecorder(fx.recorder),
	}, opts...)
	fx.flow = NewFlow(fx.ledger, pricing.Engine{RatePerHour: 1000, Policy: policy}, opts...)
	return fx
}

func (fx *fixture) enter(t *testing.T, user, plate string) string {
	t.Helper()
	require.Equal(t, msgAskEntryPlate, fx.flow.Handle(context.Background(), user, Event{Trigger: BeginEntry}))
	require.Equal(t, AwaitingEntryPlate, fx.flow.State(user))
	return fx.flow.Handle(context.Background(), user, Text(plate))
}

func (fx *fixture) leave(t *testing.T, user, plate string) string {
	t.Helper()
	require.Equal(t, msgAskExitPlate, fx.flow.Handle(context.Background(), user, Event{Trigger: BeginExit}))
	require.Equal(t, AwaitingExitPlate, fx.flow.State(user))
	return fx.flow.Handle(context.Background(), user, Text(plate))
}

func TestFlow_EntryAndExit_RoundUp(t *testing.T) {
	src, calls := countingRates(1250, nil)
	fx := newFixture(pricing.PolicyRoundUp, WithRates(src))

	reply := fx.enter(t, "u1", "  abc123 ")
	require.Equal(t, "Entry recorded for ABC123 at 09:00:00", reply)
	require.Equal(t, Idle, fx.flow.State("u1"))
	require.Equal(t, 1, fx.ledger.Len())

	fx.clock.Advance(90 * time.Minute)
	reply = fx.leave(t, "u1", "ABC123")

	require.Equal(t, strings.Join([]string{
		"Plate: ABC123",
		"Entry: 09:00:00",
		"Exit: 10:30:00",
		"Time: 1h 30m 00s (2 hour(s) billed)",
		"Total: $2000.00",
		"USD equivalent: 1.60 (rate 1250.00)",
	}, "\n"), reply)
	require.Equal(t, Idle, fx.flow.State("u1"))
	require.Zero(t, fx.ledger.Len())
	require.EqualValues(t, 1, atomic.LoadInt32(calls))

	require.Equal(t, []ledger.VehicleID{"ABC123"}, fx.recorder.entries)
	require.Len(t, fx.recorder.exits, 1)
	rec := fx.recorder.exits[0]
	require.Equal(t, int64(5400), rec.Fee.ElapsedSeconds)
	require.Equal(t, 2000.0, rec.Fee.FeeLocal)
	require.True(t, rec.ForeignAvailable)
	require.InDelta(t, 2000, rec.ForeignFee*rec.Rate, 1e-9)
}

func TestFlow_EntryAndExit_ProRata(t *testing.T) {
	fx := newFixture(pricing.PolicyProRata, WithRates(rates.Static(1500)))

	fx.enter(t, "u1", "abc123")
	fx.clock.Advance(90 * time.Minute)
	reply := fx.leave(t, "u1", "abc123")

	require.Contains(t, reply, "Time: 1h 30m 00s\n")
	require.Contains(t, reply, "Total: $1500.00")
	require.Contains(t, reply, "USD equivalent: 1.00 (rate 1500.00)")
}

func TestFlow_ExitNotFound(t *testing.T) {
	src, calls := countingRates(1250, nil)
	fx := newFixture(pricing.PolicyRoundUp, WithRates(src))

	reply := fx.leave(t, "u1", "zzz999")
	require.Equal(t, msgExitNotFound, reply)
	require.NotContains(t, reply, "Total")
	require.Equal(t, Idle, fx.flow.State("u1"))
	require.Zero(t, atomic.LoadInt32(calls))
	require.Empty(t, fx.recorder.exits)
}

func TestFlow_SecondExitIsNotFound(t *testing.T) {
	fx := newFixture(pricing.PolicyRoundUp)

	fx.enter(t, "u1", "abc123")
	require.Contains(t, fx.leave(t, "u1", "abc123"), "Total: $1000.00")
	require.Equal(t, msgExitNotFound, fx.leave(t, "u1", "abc123"))
}

func TestFlow_RateUnavailableDegradesReceipt(t *testing.T) {
	src, calls := countingRates(0, fmt.Errorf("%w: timeout", rates.ErrUnavailable))
	fx := newFixture(pricing.PolicyRoundUp, WithRates(src))

	fx.enter(t, "u1", "abc123")
	fx.clock.Advance(90 * time.Minute)
	reply := fx.leave(t, "u1", "abc123")

	require.Contains(t, reply, "Total: $2000.00")
	require.Contains(t, reply, "USD equivalent unavailable")
	require.EqualValues(t, 1, atomic.LoadInt32(calls))
	require.Zero(t, fx.ledger.Len())

	rec := fx.recorder.exits[0]
	require.False(t, rec.ForeignAvailable)
	require.Zero(t, rec.ForeignFee)
}

func TestFlow_ConversionDisabled(t *testing.T) {
	fx := newFixture(pricing.PolicyRoundUp)

	fx.enter(t, "u1", "abc123")
	reply := fx.leave(t, "u1", "abc123")
	require.NotContains(t, reply, "equivalent")
	require.True(t, strings.HasSuffix(reply, "Total: $1000.00"))
}

func TestFlow_ClockSkewNeverChargesNegative(t *testing.T) {
	fx := newFixture(pricing.PolicyRoundUp)
	future := fx.clock.Now().Add(2 * time.Hour)
	require.NoError(t, fx.ledger.RecordEntry(context.Background(), "ABC123", future))

	reply := fx.leave(t, "u1", "abc123")
	require.Contains(t, reply, "Time: 0h 00m 00s (1 hour(s) billed)")
	require.Contains(t, reply, "Total: $1000.00")
}

func TestFlow_Cancel(t *testing.T) {
	fx := newFixture(pricing.PolicyRoundUp)
	ctx := context.Background()

	require.Equal(t, msgNothingToCancel, fx.flow.Handle(ctx, "u1", Event{Trigger: Cancel}))

	fx.flow.Handle(ctx, "u1", Event{Trigger: BeginEntry})
	require.Equal(t, msgCancelled, fx.flow.Handle(ctx, "u1", Event{Trigger: Cancel}))
	require.Equal(t, Idle, fx.flow.State("u1"))

	// text after the cancellation is not taken as a plate
	require.Equal(t, msgIdleHint, fx.flow.Handle(ctx, "u1", Text("abc123")))
	require.Zero(t, fx.ledger.Len())

	fx.enter(t, "u1", "abc123")
	fx.flow.Handle(ctx, "u1", Event{Trigger: BeginExit})
	require.Equal(t, msgCancelled, fx.flow.Handle(ctx, "u1", Event{Trigger: Cancel}))
	require.Equal(t, 1, fx.ledger.Len())
}

func TestFlow_EmptyPlateReprompts(t *testing.T) {
	fx := newFixture(pricing.PolicyRoundUp)
	ctx := context.Background()

	fx.flow.Handle(ctx, "u1", Event{Trigger: BeginEntry})
	require.Equal(t, msgEmptyPlate, fx.flow.Handle(ctx, "u1", Text("   ")))
	require.Equal(t, AwaitingEntryPlate, fx.flow.State("u1"))
	require.Zero(t, fx.ledger.Len())

	require.Contains(t, fx.flow.Handle(ctx, "u1", Text("abc123")), "Entry recorded for ABC123")

	fx.flow.Handle(ctx, "u1", Event{Trigger: BeginExit})
	require.Equal(t, msgEmptyPlate, fx.flow.Handle(ctx, "u1", Text("")))
	require.Equal(t, AwaitingExitPlate, fx.flow.State("u1"))
	require.Equal(t, 1, fx.ledger.Len())
}

func TestFlow_IdleTextAndStart(t *testing.T) {
	fx := newFixture(pricing.PolicyRoundUp)
	ctx := context.Background()

	require.Equal(t, msgIdleHint, fx.flow.Handle(ctx, "u1", Text("hello")))
	require.Zero(t, fx.ledger.Len())

	fx.flow.Handle(ctx, "u1", Event{Trigger: BeginExit})
	require.Equal(t, msgWelcome, fx.flow.Handle(ctx, "u1", Event{Trigger: Start}))
	require.Equal(t, Idle, fx.flow.State("u1"))
}

func TestFlow_PendingConversations(t *testing.T) {
	fx := newFixture(pricing.PolicyRoundUp)
	ctx := context.Background()
	require.Zero(t, fx.flow.PendingConversations())

	fx.flow.Handle(ctx, "u1", Event{Trigger: BeginEntry})
	fx.flow.Handle(ctx, "u2", Event{Trigger: BeginExit})
	require.Equal(t, 2, fx.flow.PendingConversations())

	fx.flow.Handle(ctx, "u1", Text("abc123"))
	fx.flow.Handle(ctx, "u2", Event{Trigger: Cancel})
	require.Zero(t, fx.flow.PendingConversations())
}

func TestFlow_BeginSwitchesPendingAction(t *testing.T) {
	fx := newFixture(pricing.PolicyRoundUp)
	ctx := context.Background()

	fx.flow.Handle(ctx, "u1", Event{Trigger: BeginEntry})
	fx.flow.Handle(ctx, "u1", Event{Trigger: BeginExit})
	require.Equal(t, AwaitingExitPlate, fx.flow.State("u1"))
	require.Equal(t, msgExitNotFound, fx.flow.Handle(ctx, "u1", Text("abc123")))
	require.Zero(t, fx.ledger.Len())
}

func TestFlow_UsersAreIndependent(t *testing.T) {
	fx := newFixture(pricing.PolicyRoundUp)
	ctx := context.Background()

	fx.flow.Handle(ctx, "gate-a", Event{Trigger: BeginEntry})
	require.Equal(t, msgIdleHint, fx.flow.Handle(ctx, "gate-b", Text("abc123")))
	require.Equal(t, AwaitingEntryPlate, fx.flow.State("gate-a"))

	fx.enter(t, "gate-b", "abc123")
	require.Contains(t, fx.leave(t, "gate-c", "ABC123"), "Plate: ABC123")
}

func TestFlow_LedgerFailureIsRecoverable(t *testing.T) {
	src, calls := countingRates(1250, nil)
	flow := NewFlow(brokenLedger{}, pricing.Engine{RatePerHour: 1000, Policy: pricing.PolicyRoundUp}, WithRates(src))
	ctx := context.Background()

	flow.Handle(ctx, "u1", Event{Trigger: BeginEntry})
	require.Equal(t, msgLedgerUnavailable, flow.Handle(ctx, "u1", Text("abc123")))
	require.Equal(t, Idle, flow.State("u1"))

	flow.Handle(ctx, "u1", Event{Trigger: BeginExit})
	require.Equal(t, msgLedgerUnavailable, flow.Handle(ctx, "u1", Text("abc123")))
	require.Equal(t, Idle, flow.State("u1"))
	require.Zero(t, atomic.LoadInt32(calls))
}

func TestFlow_ConcurrentExitsSameVehicle(t *testing.T) {
	fx := newFixture(pricing.PolicyRoundUp, WithRates(rates.Static(1000)))
	ctx := context.Background()
	fx.enter(t, "entry-gate", "abc123")

	const attendants = 6
	for i := 0; i < attendants; i++ {
		fx.flow.Handle(ctx, fmt.Sprintf("exit-%d", i), Event{Trigger: BeginExit})
	}

	var wg sync.WaitGroup
	replies := make(chan string, attendants)
	for i := 0; i < attendants; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			replies <- fx.flow.Handle(ctx, user, Text("abc123"))
		}(fmt.Sprintf("exit-%d", i))
	}
	wg.Wait()
	close(replies)

	receipts, misses := 0, 0
	for r := range replies {
		switch {
		case strings.HasPrefix(r, "Plate: ABC123"):
			receipts++
		case r == msgExitNotFound:
			misses++
		default:
			t.Fatalf("unexpected reply: %q", r)
		}
	}
	require.Equal(t, 1, receipts)
	require.Equal(t, attendants-1, misses)
}

func TestTable(t *testing.T) {
	tbl := NewTable()
	require.Equal(t, Idle, tbl.Get("u1"))

	tbl.Set("u1", AwaitingExitPlate)
	tbl.Set("u2", AwaitingEntryPlate)
	require.Equal(t, 2, tbl.Len())
	require.Equal(t, AwaitingExitPlate, tbl.Get("u1"))

	tbl.Reset("u1")
	require.Equal(t, Idle, tbl.Get("u1"))
	require.Equal(t, 1, tbl.Len())
}

func TestFormatElapsed(t *testing.T) {
	require.Equal(t, "0h 00m 00s", formatElapsed(0))
	require.Equal(t, "1h 30m 00s", formatElapsed(90*time.Minute))
	require.Equal(t, "26h 01m 05s", formatElapsed(26*time.Hour+65*time.Second))
}
