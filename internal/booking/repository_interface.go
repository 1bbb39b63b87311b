package booking

import (
	"context"
	"time"
)

type Repository interface {
	GetBookingByID(ctx context.Context, id int) (*BookingWithDetails, error)
	HasActiveBooking(ctx context.Context, memberID, classID int) (bool, error)
	CountFutureBookings(ctx context.Context, memberID int, today string) (int, error)
	HasConfirmedBooking(ctx context.Context, memberID int) (bool, error)
	Commit(ctx context.Context, b *Booking, consumeFreeSession bool) error
	Cancel(ctx context.Context, id int, cancelledAt time.Time, restoreFreeSession bool) error
	MarkCashPaid(ctx context.Context, id int, paidAt time.Time) (*Booking, error)
	GetMemberBookings(ctx context.Context, memberID int) ([]BookingWithDetails, error)
	GetBookingsByClass(ctx context.Context, classID int) ([]BookingWithDetails, error)
	ListAll(ctx context.Context) ([]BookingWithDetails, error)
	LedgerEntries(ctx context.Context, from, to time.Time) ([]BookingWithDetails, error)
	StatsByDay(ctx context.Context, from, to time.Time) ([]DayStat, error)
	StatsByClassType(ctx context.Context, from, to time.Time) ([]ClassTypeStat, error)
}
