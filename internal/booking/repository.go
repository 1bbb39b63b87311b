package booking

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	database "milltownabc/internal/db"

	"github.com/jmoiron/sqlx"
)

const (
	bookingColumns = `id, member_id, class_id, status, is_free_session, price_cents, payment_method,
		payment_reference, paid_at, cancelled_at, member_deleted, deleted_member_name, created_at`

	detailsSelect = `
		SELECT
			b.id, b.member_id, b.class_id, b.status, b.is_free_session, b.price_cents, b.payment_method,
			b.payment_reference, b.paid_at, b.cancelled_at, b.member_deleted, b.deleted_member_name, b.created_at,
			ci.title AS class_title,
			ci.class_type,
			to_char(ci.class_date, 'YYYY-MM-DD') AS class_date,
			ci.start_time,
			m.name AS member_name,
			m.email AS member_email
		FROM bookings b
		JOIN class_instances ci ON b.class_id = ci.id
		LEFT JOIN members m ON b.member_id = m.id
	`
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) selectDetails(ctx context.Context, where, order string, args ...interface{}) ([]BookingWithDetails, error) {
	query := detailsSelect
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + order

	bookings := []BookingWithDetails{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *repository) GetBookingByID(ctx context.Context, id int) (*BookingWithDetails, error) {
	var b BookingWithDetails
	err := r.db.GetContext(ctx, &b, detailsSelect+" WHERE b.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (r *repository) HasActiveBooking(ctx context.Context, memberID, classID int) (bool, error) {
	return database.Exists(ctx, r.db, `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE member_id = $1 AND class_id = $2 AND status <> 'cancelled'
		)
	`, memberID, classID)
}

// CountFutureBookings counts live bookings for classes dated today or later.
func (r *repository) CountFutureBookings(ctx context.Context, memberID int, today string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings b
		JOIN class_instances ci ON b.class_id = ci.id
		WHERE b.member_id = $1 AND b.status <> 'cancelled' AND ci.class_date >= $2
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, memberID, today); err != nil {
		return 0, err
	}

	return count, nil
}

func (r *repository) HasConfirmedBooking(ctx context.Context, memberID int) (bool, error) {
	return database.Exists(ctx, r.db, `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE member_id = $1 AND status = 'confirmed'
		)
	`, memberID)
}

// Commit takes a seat, consumes the free session when asked and inserts the
// booking in one transaction. Each step is a conditional write, so a lost race
// rolls everything back instead of overbooking.
func (r *repository) Commit(ctx context.Context, b *Booking, consumeFreeSession bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE class_instances
		SET booked_count = booked_count + 1
		WHERE id = $1 AND booked_count < capacity AND is_active
	`, b.ClassID)
	if err := requireRow(result, err, ErrClassFull); err != nil {
		return err
	}

	if consumeFreeSession {
		result, err = tx.ExecContext(ctx, `
			UPDATE members
			SET has_used_free_session = TRUE, updated_at = NOW()
			WHERE id = $1 AND has_used_free_session = FALSE
		`, b.MemberID)
		if err := requireRow(result, err, ErrFreeSessionTaken); err != nil {
			return err
		}
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO bookings (member_id, class_id, status, is_free_session, price_cents, payment_method,
			payment_reference, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, b.MemberID, b.ClassID, b.Status, b.IsFreeSession, b.PriceCents, b.PaymentMethod,
		b.PaymentReference, b.PaidAt,
	).Scan(&b.ID, &b.CreatedAt)
	if _, ok := database.UniqueViolation(err); ok {
		return ErrAlreadyBooked
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

func requireRow(result sql.Result, err error, none error) error {
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return none
	}

	return nil
}

// Cancel marks the booking cancelled, releases its seat and optionally hands
// the free session back, all or nothing.
func (r *repository) Cancel(ctx context.Context, id int, cancelledAt time.Time, restoreFreeSession bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var classID int
	var memberID sql.NullInt64
	err = tx.QueryRowxContext(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = $2
		WHERE id = $1 AND status <> 'cancelled'
		RETURNING class_id, member_id
	`, id, cancelledAt).Scan(&classID, &memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAlreadyCancelled
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE class_instances
		SET booked_count = GREATEST(booked_count - 1, 0)
		WHERE id = $1
	`, classID)
	if err != nil {
		return err
	}

	if restoreFreeSession && memberID.Valid {
		_, err = tx.ExecContext(ctx, `
			UPDATE members
			SET has_used_free_session = FALSE, updated_at = NOW()
			WHERE id = $1
		`, memberID.Int64)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *repository) MarkCashPaid(ctx context.Context, id int, paidAt time.Time) (*Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'confirmed', paid_at = $2
		WHERE id = $1 AND status = 'pending_cash'
		RETURNING ` + bookingColumns

	var b Booking
	err := r.db.GetContext(ctx, &b, query, id, paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotPendingCash
	}
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (r *repository) GetMemberBookings(ctx context.Context, memberID int) ([]BookingWithDetails, error) {
	return r.selectDetails(ctx, "b.member_id = $1", "ci.class_date DESC, ci.start_time DESC", memberID)
}

func (r *repository) GetBookingsByClass(ctx context.Context, classID int) ([]BookingWithDetails, error) {
	return r.selectDetails(ctx, "b.class_id = $1", "b.created_at", classID)
}

func (r *repository) ListAll(ctx context.Context) ([]BookingWithDetails, error) {
	return r.selectDetails(ctx, "", "b.created_at DESC")
}

// LedgerEntries returns bookings created in [from, to). A zero bound is open.
func (r *repository) LedgerEntries(ctx context.Context, from, to time.Time) ([]BookingWithDetails, error) {
	where, args := createdBetween("b.created_at", from, to)
	return r.selectDetails(ctx, where, "b.created_at, b.id", args...)
}

func createdBetween(column string, from, to time.Time) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if !from.IsZero() {
		args = append(args, from)
		conds = append(conds, column+" >= $"+strconv.Itoa(len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conds = append(conds, column+" < $"+strconv.Itoa(len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func (r *repository) StatsByDay(ctx context.Context, from, to time.Time) ([]DayStat, error) {
	query := `
		SELECT
			to_char(date_trunc('day', created_at), 'YYYY-MM-DD') AS day,
			COUNT(*) AS bookings,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancellations,
			COALESCE(SUM(price_cents) FILTER (WHERE paid_at IS NOT NULL), 0) AS revenue_cents
		FROM bookings
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY 1
		ORDER BY 1
	`

	stats := []DayStat{}
	if err := r.db.SelectContext(ctx, &stats, query, from, to); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *repository) StatsByClassType(ctx context.Context, from, to time.Time) ([]ClassTypeStat, error) {
	query := `
		SELECT
			ci.class_type,
			COUNT(*) AS bookings,
			COUNT(*) FILTER (WHERE b.is_free_session) AS free_sessions,
			COALESCE(SUM(b.price_cents) FILTER (WHERE b.paid_at IS NOT NULL), 0) AS revenue_cents
		FROM bookings b
		JOIN class_instances ci ON b.class_id = ci.id
		WHERE b.created_at >= $1 AND b.created_at < $2 AND b.status <> 'cancelled'
		GROUP BY ci.class_type
		ORDER BY bookings DESC, ci.class_type
	`

	stats := []ClassTypeStat{}
	if err := r.db.SelectContext(ctx, &stats, query, from, to); err != nil {
		return nil, err
	}

	return stats, nil
}
