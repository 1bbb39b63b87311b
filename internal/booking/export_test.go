package booking

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPeriodRange(t *testing.T) {
	// Monday 19 October 2026
	now := time.Date(2026, 10, 19, 15, 4, 0, 0, london)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, london) }

	tests := []struct {
		period   string
		from, to time.Time
	}{
		{PeriodToday, day(2026, 10, 19), day(2026, 10, 20)},
		{PeriodWeek, day(2026, 10, 19), day(2026, 10, 26)},
		{PeriodMonth, day(2026, 10, 1), day(2026, 11, 1)},
		{PeriodLastMonth, day(2026, 9, 1), day(2026, 10, 1)},
		{PeriodTaxYear, day(2026, 4, 6), day(2027, 4, 6)},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			from, to, err := PeriodRange(tt.period, now, london)
			require.NoError(t, err)
			assert.True(t, tt.from.Equal(from), "from = %s", from)
			assert.True(t, tt.to.Equal(to), "to = %s", to)
		})
	}
}

func TestPeriodRange_Edges(t *testing.T) {
	sunday := time.Date(2026, 10, 25, 23, 0, 0, 0, london)
	from, _, err := PeriodRange(PeriodWeek, sunday, london)
	require.NoError(t, err)
	assert.Equal(t, 19, from.Day(), "weeks start on Monday")

	april5 := time.Date(2026, 4, 5, 12, 0, 0, 0, london)
	from, to, err := PeriodRange(PeriodTaxYear, april5, london)
	require.NoError(t, err)
	assert.Equal(t, 2025, from.Year())
	assert.Equal(t, time.April, to.Month())
	assert.Equal(t, 6, to.Day())

	january := time.Date(2027, 1, 10, 12, 0, 0, 0, london)
	from, _, err = PeriodRange(PeriodLastMonth, january, london)
	require.NoError(t, err)
	assert.Equal(t, 2026, from.Year())
	assert.Equal(t, time.December, from.Month())

	from, to, err = PeriodRange(PeriodAllTime, january, london)
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.True(t, to.IsZero())

	_, _, err = PeriodRange("fortnight", january, london)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func ledgerFixture() []BookingWithDetails {
	created := time.Date(2026, 10, 1, 10, 0, 0, 0, london)
	entry := func(id int, status string) BookingWithDetails {
		return BookingWithDetails{
			Booking:    Booking{ID: id, MemberID: ptr(5), ClassID: 7, Status: status, CreatedAt: created},
			ClassTitle: "Senior Boxing",
			ClassDate:  "2026-10-05",
			StartTime:  "18:45",
			MemberName: ptr("Sam"),
		}
	}

	free := entry(1, StatusConfirmed)
	free.IsFreeSession = true

	paid := entry(2, StatusConfirmed)
	paid.PriceCents, paid.PaymentMethod = 500, MethodCard
	paid.PaymentReference, paid.PaidAt = ptr("txn-2"), ptr(created)

	refunded := entry(3, StatusCancelled)
	refunded.PriceCents, refunded.PaymentMethod = 500, MethodCard
	refunded.PaymentReference, refunded.PaidAt = ptr("txn-3"), ptr(created)
	refunded.CancelledAt = ptr(time.Date(2026, 10, 4, 9, 0, 0, 0, london))

	forfeited := entry(4, StatusCancelled)
	forfeited.PriceCents, forfeited.PaymentMethod = 500, MethodCard
	forfeited.PaymentReference, forfeited.PaidAt = ptr("txn-4"), ptr(created)
	forfeited.CancelledAt = ptr(time.Date(2026, 10, 5, 18, 0, 0, 0, london))

	cash := entry(5, StatusPendingCash)
	cash.PriceCents, cash.PaymentMethod = 500, MethodCash

	deleted := entry(6, StatusCancelled)
	deleted.IsFreeSession = true
	deleted.MemberID, deleted.MemberName = nil, nil
	deleted.MemberDeleted, deleted.DeletedMemberName = true, ptr("Deleted Member")

	return []BookingWithDetails{free, paid, refunded, forfeited, cash, deleted}
}

func TestBuildLedger(t *testing.T) {
	ledger := BuildLedger(ledgerFixture(), london, 500)

	require.Len(t, ledger.Rows, 7)
	amounts := make([]int64, 0, len(ledger.Rows))
	for _, r := range ledger.Rows {
		amounts = append(amounts, r.AmountCents)
	}
	assert.Equal(t, []int64{0, 500, 500, -500, 500, 0, 0}, amounts)

	refund := ledger.Rows[3]
	assert.Equal(t, "REFUND-txn-3", refund.TransactionID)
	assert.Equal(t, "refunded", refund.Status)
	assert.Equal(t, int64(500), refund.BalanceCents)
	assert.Equal(t, int64(1000), ledger.Rows[len(ledger.Rows)-1].BalanceCents)
	assert.Equal(t, "BK-1", ledger.Rows[0].TransactionID)
	assert.Equal(t, "Deleted Member", ledger.Rows[6].Member)

	sum := ledger.Summary
	assert.Equal(t, int64(1500), sum.GrossCents)
	assert.Equal(t, int64(500), sum.RefundsCents)
	assert.Equal(t, int64(1000), sum.NetCents)
	assert.Equal(t, 1, sum.FreeSessions)
	assert.Equal(t, int64(500), sum.FreeSessionValue)
	assert.Equal(t, 1, sum.FreeSessionsReleased, "the anonymised free booking was never used")
	assert.Equal(t, int64(500), sum.CashOutstandingCents)
}

func TestBuildLedger_FreeSessionsGivenVersusReleased(t *testing.T) {
	created := time.Date(2026, 10, 1, 10, 0, 0, 0, london)
	free := func(id int, cancelledAt *time.Time) BookingWithDetails {
		b := BookingWithDetails{
			Booking: Booking{ID: id, MemberID: ptr(5), ClassID: 7, Status: StatusConfirmed,
				IsFreeSession: true, CreatedAt: created},
			ClassTitle: "Junior Boxing",
			ClassDate:  "2026-10-05",
			StartTime:  "17:30",
			MemberName: ptr("Sam"),
		}
		if cancelledAt != nil {
			b.Status, b.CancelledAt = StatusCancelled, cancelledAt
		}
		return b
	}

	entries := []BookingWithDetails{
		free(1, nil),
		free(2, ptr(time.Date(2026, 10, 5, 17, 0, 0, 0, london))),
		free(3, ptr(time.Date(2026, 10, 3, 12, 0, 0, 0, london))),
	}

	sum := BuildLedger(entries, london, 500).Summary
	assert.Equal(t, 2, sum.FreeSessions, "a late cancel forfeits the free session")
	assert.Equal(t, int64(1000), sum.FreeSessionValue)
	assert.Equal(t, 1, sum.FreeSessionsReleased)
	assert.Zero(t, sum.GrossCents)
}

func TestWriteCSV(t *testing.T) {
	ledger := BuildLedger(ledgerFixture(), london, 500)
	ledger.Period = PeriodMonth
	ledger.From = time.Date(2026, 10, 1, 0, 0, 0, 0, london)
	ledger.To = time.Date(2026, 11, 1, 0, 0, 0, 0, london)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ledger))

	r := csv.NewReader(strings.NewReader(buf.String()))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, ledgerHeader, records[0])
	assert.Equal(t, []string{"2026-10-04 09:00", "REFUND-txn-3", "Sam", "Refund: Senior Boxing 2026-10-05 18:45", "refunded", "-5.00", "5.00"}, records[4])

	out := buf.String()
	assert.Contains(t, out, "Period,month (2026-10-01 to 2026-10-31)")
	assert.Contains(t, out, "Gross revenue,15.00")
	assert.Contains(t, out, "Free session value,5.00")
	assert.Contains(t, out, "Free sessions released,1")
	assert.Contains(t, out, "Net revenue,10.00")
	assert.Contains(t, out, "\n\nSummary\n")
}

func TestLedger_UsesPeriodBounds(t *testing.T) {
	f := newFixture(morning)
	from, to, err := PeriodRange(PeriodToday, morning, london)
	require.NoError(t, err)
	f.repo.On("LedgerEntries", mock.Anything, from, to).Return([]BookingWithDetails{}, nil)

	ledger, err := f.svc.Ledger(context.Background(), PeriodToday)
	require.NoError(t, err)
	assert.Equal(t, PeriodToday, ledger.Period)
	assert.Empty(t, ledger.Rows)

	_, err = f.svc.Ledger(context.Background(), "yesterday")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
