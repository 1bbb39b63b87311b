package booking

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"milltownabc/internal/api"
)

const (
	PeriodToday     = "today"
	PeriodWeek      = "week"
	PeriodMonth     = "month"
	PeriodLastMonth = "last-month"
	PeriodTaxYear   = "tax-year"
	PeriodAllTime   = "all-time"

	ledgerDateFmt = "2006-01-02 15:04"
)

var ledgerHeader = []string{"Date", "Transaction ID", "Member", "Description", "Status", "Amount", "Balance"}

type LedgerRow struct {
	Date          time.Time
	TransactionID string
	Member        string
	Description   string
	Status        string
	AmountCents   int64
	BalanceCents  int64
}

type LedgerSummary struct {
	GrossCents           int64
	FreeSessions         int // given, including ones forfeited by a late cancel
	FreeSessionValue     int64
	FreeSessionsReleased int // cancelled early or by account deletion, entitlement not spent
	RefundsCents         int64
	CashOutstandingCents int64
	NetCents             int64
}

type Ledger struct {
	Period  string
	From    time.Time
	To      time.Time
	Rows    []LedgerRow
	Summary LedgerSummary
}

// PeriodRange resolves a named period to [from, to) in loc. Weeks start on
// Monday and the tax year runs from 6 April. All-time returns zero bounds.
func PeriodRange(period string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	switch period {
	case PeriodToday:
		return today, today.AddDate(0, 0, 1), nil
	case PeriodWeek:
		monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
		return monday, monday.AddDate(0, 0, 7), nil
	case PeriodMonth:
		return firstOfMonth, firstOfMonth.AddDate(0, 1, 0), nil
	case PeriodLastMonth:
		return firstOfMonth.AddDate(0, -1, 0), firstOfMonth, nil
	case PeriodTaxYear:
		start := time.Date(now.Year(), time.April, 6, 0, 0, 0, 0, loc)
		if today.Before(start) {
			start = start.AddDate(-1, 0, 0)
		}
		return start, start.AddDate(1, 0, 0), nil
	case PeriodAllTime:
		return time.Time{}, time.Time{}, nil
	default:
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
}

func (s *service) Ledger(ctx context.Context, period string) (*Ledger, error) {
	from, to, err := PeriodRange(period, s.now(), s.opts.Location)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.LedgerEntries(ctx, from, to)
	if err != nil {
		return nil, err
	}

	ledger := BuildLedger(entries, s.opts.Location, s.opts.SessionPriceCents)
	ledger.Period, ledger.From, ledger.To = period, from, to

	return ledger, nil
}

// BuildLedger turns bookings into signed ledger rows with a running balance.
// A paid booking is a charge; cancelling it more than an hour ahead adds a
// matching refund. Free sessions and unpaid cash bookings are zero rows.
func BuildLedger(entries []BookingWithDetails, loc *time.Location, sessionPriceCents int64) *Ledger {
	ledger := &Ledger{Rows: make([]LedgerRow, 0, len(entries))}
	sum := &ledger.Summary
	var balance int64

	add := func(at time.Time, txID, memberName, desc, status string, amount int64) {
		balance += amount
		ledger.Rows = append(ledger.Rows, LedgerRow{
			Date:          at.In(loc),
			TransactionID: txID,
			Member:        memberName,
			Description:   desc,
			Status:        status,
			AmountCents:   amount,
			BalanceCents:  balance,
		})
	}

	for i := range entries {
		b := &entries[i]
		txID := "BK-" + strconv.Itoa(b.ID)
		if b.PaymentReference != nil && *b.PaymentReference != "" {
			txID = *b.PaymentReference
		}
		name := b.DisplayName()
		desc := fmt.Sprintf("%s %s %s", b.ClassTitle, b.ClassDate, b.StartTime)

		switch {
		case b.IsPaid():
			add(*b.PaidAt, txID, name, "Session fee: "+desc, b.Status, b.PriceCents)
			sum.GrossCents += b.PriceCents

			if refundable(b, loc) {
				add(*b.CancelledAt, "REFUND-"+txID, name, "Refund: "+desc, "refunded", -b.PriceCents)
				sum.RefundsCents += b.PriceCents
			}

		case b.IsFreeSession:
			add(b.CreatedAt, txID, name, "Free session: "+desc, b.Status, 0)
			if freeSessionReleased(b, loc) {
				sum.FreeSessionsReleased++
			} else {
				sum.FreeSessions++
			}

		default:
			add(b.CreatedAt, txID, name, "Cash due: "+desc, b.Status, 0)
			if b.Status == StatusPendingCash {
				sum.CashOutstandingCents += b.PriceCents
			}
		}
	}

	sum.FreeSessionValue = int64(sum.FreeSessions) * sessionPriceCents
	sum.NetCents = sum.GrossCents - sum.RefundsCents

	return ledger
}

func refundable(b *BookingWithDetails, loc *time.Location) bool {
	if b.Status != StatusCancelled || b.CancelledAt == nil {
		return false
	}
	startsAt, err := b.StartsAt(loc)
	if err != nil {
		return false
	}
	return b.CancelledAt.Before(startsAt.Add(-refundWindow))
}

// freeSessionReleased reports a cancelled free session that was not consumed.
// Anonymised bookings carry no cancellation time and count as released.
func freeSessionReleased(b *BookingWithDetails, loc *time.Location) bool {
	if b.Status != StatusCancelled {
		return false
	}
	return b.CancelledAt == nil || refundable(b, loc)
}

func periodLabel(l *Ledger) string {
	if l.From.IsZero() {
		return l.Period
	}
	last := l.To.AddDate(0, 0, -1)
	return fmt.Sprintf("%s (%s to %s)", l.Period, l.From.Format("2006-01-02"), last.Format("2006-01-02"))
}

// WriteCSV renders the ledger rows followed by a blank line and the summary
// block. The output is meant for bookkeeping, not for re-import.
func WriteCSV(w io.Writer, l *Ledger) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ledgerHeader); err != nil {
		return err
	}
	for _, row := range l.Rows {
		record := []string{
			row.Date.Format(ledgerDateFmt),
			row.TransactionID,
			row.Member,
			row.Description,
			row.Status,
			api.FormatPrice(row.AmountCents),
			api.FormatPrice(row.BalanceCents),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	sum := l.Summary
	summary := [][]string{
		{},
		{"Summary"},
		{"Period", periodLabel(l)},
		{"Gross revenue", api.FormatPrice(sum.GrossCents)},
		{"Free sessions", strconv.Itoa(sum.FreeSessions)},
		{"Free session value", api.FormatPrice(sum.FreeSessionValue)},
		{"Free sessions released", strconv.Itoa(sum.FreeSessionsReleased)},
		{"Refunds", api.FormatPrice(sum.RefundsCents)},
		{"Cash outstanding", api.FormatPrice(sum.CashOutstandingCents)},
		{"Net revenue", api.FormatPrice(sum.NetCents)},
	}
	if err := cw.WriteAll(summary); err != nil {
		return err
	}

	return cw.Error()
}
