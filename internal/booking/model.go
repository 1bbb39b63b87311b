package booking

import (
	"errors"
	"time"
)

const (
	StatusPending     = "pending"
	StatusPendingCash = "pending_cash"
	StatusConfirmed   = "confirmed"
	StatusCancelled   = "cancelled"

	MethodCard = "card"
	MethodCash = "cash"
)

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrClassUnavailable = errors.New("this class is not available for booking")
	ErrClassStarted     = errors.New("this class has already started")
	ErrClassFull        = errors.New("this class is fully booked")
	ErrAlreadyBooked    = errors.New("you have already booked this class")
	ErrMaxBookings      = errors.New("you already hold the maximum number of upcoming bookings")
	ErrPaymentRequired  = errors.New("payment required: add a card or choose to pay cash at the class")
	ErrFreeSessionTaken = errors.New("your free session has already been used")
	ErrNotOwner         = errors.New("you can only cancel your own bookings")
	ErrAlreadyCancelled = errors.New("booking is already cancelled")
	ErrNotPendingCash   = errors.New("booking is not awaiting a cash payment")
	ErrInvalidPeriod    = errors.New("period must be one of today, week, month, last-month, tax-year, all-time")
	ErrInvalidRange     = errors.New("from and to must be RFC3339 timestamps with from before to")
)

// PaymentError carries the gateway's member-facing message.
type PaymentError struct {
	Message string
}

func (e *PaymentError) Error() string {
	return e.Message
}

type Booking struct {
	ID                int        `db:"id" json:"id"`
	MemberID          *int       `db:"member_id" json:"member_id,omitempty"`
	ClassID           int        `db:"class_id" json:"class_id"`
	Status            string     `db:"status" json:"status" example:"confirmed"`
	IsFreeSession     bool       `db:"is_free_session" json:"is_free_session"`
	PriceCents        int64      `db:"price_cents" json:"price_cents" example:"500"`
	PaymentMethod     string     `db:"payment_method" json:"payment_method" example:"card"`
	PaymentReference  *string    `db:"payment_reference" json:"payment_reference,omitempty"`
	PaidAt            *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CancelledAt       *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	MemberDeleted     bool       `db:"member_deleted" json:"member_deleted"`
	DeletedMemberName *string    `db:"deleted_member_name" json:"deleted_member_name,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// IsPaid reports whether money has been taken for the booking.
func (b *Booking) IsPaid() bool {
	return !b.IsFreeSession && b.PaidAt != nil
}

type BookingWithDetails struct {
	Booking
	ClassTitle  string  `db:"class_title" json:"class_title"`
	ClassType   string  `db:"class_type" json:"class_type"`
	ClassDate   string  `db:"class_date" json:"class_date" example:"2026-11-02"`
	StartTime   string  `db:"start_time" json:"start_time" example:"18:30"`
	MemberName  *string `db:"member_name" json:"member_name,omitempty"`
	MemberEmail *string `db:"member_email" json:"member_email,omitempty"`
}

// StartsAt is the class start in loc.
func (b *BookingWithDetails) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", b.ClassDate+" "+b.StartTime, loc)
}

// DisplayName never exposes the name of a deleted member.
func (b *BookingWithDetails) DisplayName() string {
	switch {
	case b.MemberDeleted && b.DeletedMemberName != nil:
		return *b.DeletedMemberName
	case b.MemberName != nil:
		return *b.MemberName
	default:
		return "Unknown"
	}
}

type BookRequest struct {
	PaymentToken string `json:"payment_token" example:"481111-1114-a901971f-2f1b-4781-802a-df326fbf0e9c"`
	PayWithCash  bool   `json:"pay_with_cash"`
	CaptchaToken string `json:"captcha_token"`
}

type BookInput struct {
	MemberID     int
	ClassID      int
	PaymentToken string
	PayWithCash  bool
	CaptchaToken string
	ClientIP     string
}

type BookResult struct {
	Booking          *Booking `json:"booking"`
	IsFreeSession    bool     `json:"is_free_session"`
	Price            string   `json:"price" example:"5.00"`
	PaymentReference string   `json:"payment_reference,omitempty"`
	ReceiptURL       string   `json:"receipt_url,omitempty"`
	Message          string   `json:"message"`
}

type CancelInput struct {
	BookingID int
	ActorID   int
	IsAdmin   bool
}

type CancelResult struct {
	Message              string `json:"message"`
	FreeSessionRestored  bool   `json:"free_session_restored"`
	FreeSessionForfeited bool   `json:"free_session_forfeited"`
	RefundEligible       bool   `json:"refund_eligible"`
}

type DayStat struct {
	Day           string `db:"day" json:"day" example:"2026-10-19"`
	Bookings      int    `db:"bookings" json:"bookings"`
	Cancellations int    `db:"cancellations" json:"cancellations"`
	RevenueCents  int64  `db:"revenue_cents" json:"revenue_cents"`
}

type ClassTypeStat struct {
	ClassType    string `db:"class_type" json:"class_type" example:"senior"`
	Bookings     int    `db:"bookings" json:"bookings"`
	FreeSessions int    `db:"free_sessions" json:"free_sessions"`
	RevenueCents int64  `db:"revenue_cents" json:"revenue_cents"`
}

type Analytics struct {
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	ByDay       []DayStat       `json:"by_day"`
	ByClassType []ClassTypeStat `json:"by_class_type"`
}
