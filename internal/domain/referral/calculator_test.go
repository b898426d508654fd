package referral

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/hook"
)

// --- Fakes ---

type fakeRecords struct {
	byOrder map[string]Record
	saves   int
	findErr error
	saveErr error
	// raced simulates a concurrent delivery that stored a record between
	// Find and SaveIfAbsent.
	raced bool
}

func (f *fakeRecords) Find(_ context.Context, orderID string) (*Record, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	rec, ok := f.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeRecords) SaveIfAbsent(_ context.Context, rec *Record) (bool, error) {
	if f.saveErr != nil {
		return false, f.saveErr
	}
	if f.raced {
		return false, nil
	}
	if _, ok := f.byOrder[rec.OrderID]; ok {
		return false, nil
	}
	f.saves++
	f.byOrder[rec.OrderID] = *rec
	return true, nil
}

type fakeMeta struct {
	codes map[string]string
	err   error
}

func (f *fakeMeta) ReferralCode(_ context.Context, orderID string) (string, error) {
	return f.codes[orderID], f.err
}

func (f *fakeMeta) SetReferralCode(_ context.Context, orderID, code string) error {
	if f.err != nil {
		return f.err
	}
	f.codes[orderID] = code
	return nil
}

// --- Helpers ---

type fixture struct {
	calc    *Calculator
	records *fakeRecords
	meta    *fakeMeta
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.InfoLevel)
	records := &fakeRecords{byOrder: map[string]Record{}}
	meta := &fakeMeta{codes: map[string]string{}}

	calc, err := NewCalculator(records, meta, time.UTC, zap.New(core),
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	calc.now = func() time.Time { return now }

	return &fixture{calc: calc, records: records, meta: meta, logs: logs}
}

// --- Tests ---

func TestOnOrderProcessed_ComputesWindow(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.January, 1, 15, 45, 0, 0, time.UTC))
	f.meta.codes["1001"] = "PARRAIN-42"

	require.NoError(t, f.calc.OnOrderProcessed(context.Background(), "1001"))

	rec, ok := f.records.byOrder["1001"]
	require.True(t, ok)
	assert.Equal(t, "2024-01-01", rec.StartDate.Format(RawLayout))
	assert.Equal(t, "2025-01-03", rec.EndDate.Format(RawLayout))
	assert.Equal(t, 2, rec.MarginDays)
	assert.Zero(t, rec.StartDate.Hour())

	entries := f.logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, Channel, entries[0].LoggerName)
	assert.Equal(t, map[string]interface{}{
		"order_id":   "1001",
		"start_date": "2024-01-01",
		"end_date":   "2025-01-03",
	}, entries[0].ContextMap())
}

func TestOnOrderProcessed_EndOfMonthOverflow(t *testing.T) {
	// 2024-01-31 + 12 months is 2025-01-31; plus 2 days is 2025-02-02.
	f := newFixture(t, time.Date(2024, time.January, 31, 8, 0, 0, 0, time.UTC))
	f.meta.codes["7"] = "CODE"

	require.NoError(t, f.calc.OnOrderProcessed(context.Background(), "7"))
	assert.Equal(t, "2025-02-02", f.records.byOrder["7"].EndDate.Format(RawLayout))
}

func TestOnOrderProcessed_Idempotent(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC))
	f.meta.codes["1001"] = "PARRAIN-42"
	ctx := context.Background()

	require.NoError(t, f.calc.OnOrderProcessed(ctx, "1001"))
	first := f.records.byOrder["1001"]

	// A later redelivery must not move the window.
	f.calc.now = func() time.Time { return time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, f.calc.OnOrderProcessed(ctx, "1001"))

	assert.Equal(t, first, f.records.byOrder["1001"])
	assert.Equal(t, 1, f.records.saves)
	assert.Equal(t, 1, f.logs.Len())
}

func TestOnOrderProcessed_NoOps(t *testing.T) {
	tests := []struct {
		name    string
		orderID string
		code    string
	}{
		{name: "empty order id", orderID: "", code: "PARRAIN"},
		{name: "no referral code", orderID: "2002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Now())
			f.meta.codes[tt.orderID] = tt.code

			require.NoError(t, f.calc.OnOrderProcessed(context.Background(), tt.orderID))
			assert.Empty(t, f.records.byOrder)
			assert.Zero(t, f.logs.Len())
		})
	}
}

// The stored code is opaque: only its presence matters.
func TestOnOrderProcessed_WhitespaceCodeIsPresent(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	f.meta.codes["2003"] = "   "

	require.NoError(t, f.calc.OnOrderProcessed(context.Background(), "2003"))
	assert.Equal(t, "2025-03-03", f.records.byOrder["2003"].EndDate.Format(RawLayout))
}

func TestOnOrderProcessed_LostRace(t *testing.T) {
	f := newFixture(t, time.Now())
	f.meta.codes["1"] = "CODE"
	f.records.raced = true

	require.NoError(t, f.calc.OnOrderProcessed(context.Background(), "1"))
	assert.Zero(t, f.records.saves)
	assert.Zero(t, f.logs.Len())
}

func TestOnOrderProcessed_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		wantMsg string
	}{
		{
			name:    "find fails",
			setup:   func(f *fixture) { f.records.findErr = errors.New("db down") },
			wantMsg: "find record",
		},
		{
			name:    "meta fails",
			setup:   func(f *fixture) { f.meta.err = errors.New("db down") },
			wantMsg: "read referral code",
		},
		{
			name: "save fails",
			setup: func(f *fixture) {
				f.meta.codes["1"] = "CODE"
				f.records.saveErr = errors.New("db down")
			},
			wantMsg: "save record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Now())
			tt.setup(f)

			err := f.calc.OnOrderProcessed(context.Background(), "1")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestInfo(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	info, err := f.calc.Info(ctx, "1001")
	require.NoError(t, err)
	assert.Nil(t, info)

	f.meta.codes["1001"] = "PARRAIN"
	require.NoError(t, f.calc.OnOrderProcessed(ctx, "1001"))

	info, err = f.calc.Info(ctx, "1001")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "01-01-2024", info.StartDateFormatted)
	assert.Equal(t, "03-01-2025", info.EndDateFormatted)
	assert.Equal(t, 12, info.DiscountPeriodMonths)
	assert.Equal(t, 2, info.MarginDays)
}

func TestRecordReferralCode(t *testing.T) {
	f := newFixture(t, time.Now())
	ctx := context.Background()

	require.NoError(t, f.calc.RecordReferralCode(ctx, "1", " PARRAIN "))
	require.NoError(t, f.calc.RecordReferralCode(ctx, "1", ""))
	require.NoError(t, f.calc.RecordReferralCode(ctx, "", "IGNORED"))

	assert.Equal(t, map[string]string{"1": "PARRAIN"}, f.meta.codes)
}

func TestCalculator_RegisterOnBus(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	f.meta.codes["55"] = "CODE"
	b := hook.NewBus().Install(f.calc)

	require.NoError(t, b.Dispatch(context.Background(), hook.EventOrderProcessed, &hook.Request{OrderID: "55"}))
	require.NoError(t, b.Dispatch(context.Background(), hook.EventOrderProcessed, &hook.Request{OrderID: "55"}))

	assert.Equal(t, 1, f.records.saves)
	assert.Equal(t, []string{Channel}, b.Handlers(hook.EventOrderProcessed))
}
