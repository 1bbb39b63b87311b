package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"milltownabc/internal/api"
	"milltownabc/internal/calendar"
	"milltownabc/internal/email"
	"milltownabc/internal/guard"
	"milltownabc/internal/logger"
	"milltownabc/internal/member"
	"milltownabc/internal/metrics"
	"milltownabc/internal/payment"

	"github.com/google/uuid"
)

const (
	captchaActionFreeBooking = "free_booking"
	refundWindow             = time.Hour
)

type MemberStore interface {
	FindByID(ctx context.Context, id int) (*member.Member, error)
	SetFreeSessionUsed(ctx context.Context, id int, used bool) error
}

type ClassStore interface {
	GetByID(ctx context.Context, id int) (*calendar.ClassInstance, error)
}

// Guard is the part of the anti-abuse layer the ledger talks to.
type Guard interface {
	VerifyHuman(ctx context.Context, token, ip, action string) error
	Record(ip, category, detail string)
}

type Notifier interface {
	SendBookingConfirmation(ctx context.Context, n email.BookingNotice) error
	SendCancellation(ctx context.Context, n email.CancellationNotice) error
}

type Options struct {
	Location          *time.Location
	SessionPriceCents int64
	Currency          string
	MaxFutureBookings int
}

type Service interface {
	BookClass(ctx context.Context, in BookInput) (*BookResult, error)
	CancelBooking(ctx context.Context, in CancelInput) (*CancelResult, error)
	MarkCashPaid(ctx context.Context, id int) (*Booking, error)
	GetMemberBookings(ctx context.Context, memberID int) ([]BookingWithDetails, error)
	GetBookingsByClass(ctx context.Context, classID int) ([]BookingWithDetails, error)
	ListAll(ctx context.Context) ([]BookingWithDetails, error)
	Analytics(ctx context.Context, from, to time.Time) (*Analytics, error)
	Ledger(ctx context.Context, period string) (*Ledger, error)
}

type service struct {
	repo       Repository
	members    MemberStore
	classes    ClassStore
	gateway    payment.Gateway
	guard      Guard
	notifier   Notifier
	dispatcher *email.Dispatcher
	opts       Options
	now        func() time.Time
}

func NewService(
	repo Repository,
	members MemberStore,
	classes ClassStore,
	gateway payment.Gateway,
	abuse Guard,
	notifier Notifier,
	dispatcher *email.Dispatcher,
	opts Options,
) Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxFutureBookings <= 0 {
		opts.MaxFutureBookings = 3
	}
	return &service{
		repo:       repo,
		members:    members,
		classes:    classes,
		gateway:    gateway,
		guard:      abuse,
		notifier:   notifier,
		dispatcher: dispatcher,
		opts:       opts,
		now:        time.Now,
	}
}

func reject(reason string, err error) error {
	metrics.RecordBookingRejection(reason)
	return err
}

// BookClass runs the eligibility checks in order, takes payment when the
// session is not free and commits seat, free-session flag and booking together.
func (s *service) BookClass(ctx context.Context, in BookInput) (*BookResult, error) {
	m, err := s.members.FindByID(ctx, in.MemberID)
	if err != nil {
		return nil, err
	}

	class, err := s.classes.GetByID(ctx, in.ClassID)
	if errors.Is(err, calendar.ErrClassNotFound) {
		return nil, reject("class_not_found", err)
	}
	if err != nil {
		return nil, err
	}
	if !class.IsActive {
		return nil, reject("class_inactive", ErrClassUnavailable)
	}

	now := s.now().In(s.opts.Location)
	startsAt := class.StartsAt(s.opts.Location)
	if !now.Before(startsAt) {
		return nil, reject("class_started", ErrClassStarted)
	}
	if class.IsFull() {
		return nil, reject("class_full", ErrClassFull)
	}

	booked, err := s.repo.HasActiveBooking(ctx, m.ID, class.ID)
	if err != nil {
		return nil, err
	}
	if booked {
		return nil, reject("already_booked", ErrAlreadyBooked)
	}

	upcoming, err := s.repo.CountFutureBookings(ctx, m.ID, now.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	if upcoming >= s.opts.MaxFutureBookings {
		return nil, reject("max_bookings", ErrMaxBookings)
	}

	isFree, err := s.freeSessionAvailable(ctx, m)
	if err != nil {
		return nil, err
	}

	memberID := m.ID
	b := &Booking{
		MemberID:      &memberID,
		ClassID:       class.ID,
		IsFreeSession: isFree,
	}
	var charge payment.ChargeResult

	switch {
	case isFree:
		if err := s.guard.VerifyHuman(ctx, in.CaptchaToken, in.ClientIP, captchaActionFreeBooking); err != nil {
			return nil, reject("captcha", err)
		}
		b.Status = StatusConfirmed

	case in.PayWithCash:
		b.Status = StatusPendingCash
		b.PaymentMethod = MethodCash
		b.PriceCents = s.opts.SessionPriceCents

	default:
		if in.PaymentToken == "" {
			return nil, reject("payment_required", ErrPaymentRequired)
		}

		charge = s.gateway.Charge(ctx, payment.ChargeRequest{
			Token:          in.PaymentToken,
			AmountCents:    s.opts.SessionPriceCents,
			Currency:       s.opts.Currency,
			IdempotencyKey: uuid.NewString(),
			ReferenceID:    fmt.Sprintf("class-%d-member-%d-%d", class.ID, m.ID, now.Unix()),
			Note:           fmt.Sprintf("%s on %s at %s", class.Title, class.Date(), class.StartTime),
			CustomerEmail:  m.Email,
			CustomerName:   m.Name,
		})
		if !charge.Success {
			return nil, reject("payment_failed", &PaymentError{Message: charge.ErrorMessage})
		}

		paidAt := now
		reference := charge.TransactionID
		b.Status = StatusConfirmed
		b.PaymentMethod = MethodCard
		b.PriceCents = s.opts.SessionPriceCents
		b.PaymentReference = &reference
		b.PaidAt = &paidAt
	}

	if err := s.repo.Commit(ctx, b, isFree); err != nil {
		if b.PaymentMethod == MethodCard {
			s.voidCharge(in.ClientIP, charge.TransactionID, err)
		}
		switch {
		case errors.Is(err, ErrClassFull):
			return nil, reject("class_full", err)
		case errors.Is(err, ErrAlreadyBooked):
			return nil, reject("already_booked", err)
		case errors.Is(err, ErrFreeSessionTaken):
			return nil, reject("free_session_taken", err)
		}
		return nil, err
	}

	metrics.RecordBooking(b.Status, b.PaymentMethod)
	logger.Info("Class booked",
		"booking_id", b.ID,
		"member_id", m.ID,
		"class_id", class.ID,
		"status", b.Status,
		"free", b.IsFreeSession,
	)

	notice := email.BookingNotice{
		To:            m.Email,
		Name:          m.Name,
		ClassTitle:    class.Title,
		StartsAt:      startsAt,
		Price:         api.FormatPrice(b.PriceCents),
		IsFreeSession: b.IsFreeSession,
		PaymentMethod: b.PaymentMethod,
	}
	s.dispatcher.Go("booking_confirmation_email", func(ctx context.Context) error {
		return s.notifier.SendBookingConfirmation(ctx, notice)
	})

	return &BookResult{
		Booking:          b,
		IsFreeSession:    b.IsFreeSession,
		Price:            api.FormatPrice(b.PriceCents),
		PaymentReference: charge.TransactionID,
		ReceiptURL:       charge.ReceiptURL,
		Message:          bookingMessage(b),
	}, nil
}

// freeSessionAvailable trusts the member flag, except that a member with any
// confirmed booking on record has had their first session, so an unset flag
// is repaired and treated as used.
func (s *service) freeSessionAvailable(ctx context.Context, m *member.Member) (bool, error) {
	if m.HasUsedFreeSession {
		return false, nil
	}

	used, err := s.repo.HasConfirmedBooking(ctx, m.ID)
	if err != nil {
		return false, err
	}
	if !used {
		return true, nil
	}

	logger.Warn("Free session flag out of step with bookings, repairing", "member_id", m.ID)
	if err := s.members.SetFreeSessionUsed(ctx, m.ID, true); err != nil {
		return false, err
	}

	return false, nil
}

func (s *service) voidCharge(ip, transactionID string, cause error) {
	detail := fmt.Sprintf("booking commit failed after card charge %s: %v", transactionID, cause)
	s.guard.Record(ip, guard.CategoryPaymentVoid, detail)
	logger.Error("Voiding card charge after failed booking commit", "transaction_id", transactionID, "error", cause)

	s.dispatcher.Go("payment_void", func(ctx context.Context) error {
		return s.gateway.Void(ctx, transactionID)
	})
}

func bookingMessage(b *Booking) string {
	switch {
	case b.IsFreeSession:
		return "Your free first session is booked. See you there!"
	case b.PaymentMethod == MethodCash:
		return fmt.Sprintf("Your place is reserved. Please bring %s in cash to the class.", api.FormatPrice(b.PriceCents))
	default:
		return fmt.Sprintf("Booking confirmed. Your card has been charged %s.", api.FormatPrice(b.PriceCents))
	}
}

// CancelBooking applies the one-hour rule: cancelling earlier hands a free
// session back and makes a paid one refundable, later forfeits both.
func (s *service) CancelBooking(ctx context.Context, in CancelInput) (*CancelResult, error) {
	b, err := s.repo.GetBookingByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}

	if !in.IsAdmin && (b.MemberID == nil || *b.MemberID != in.ActorID) {
		return nil, ErrNotOwner
	}
	if b.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	startsAt, err := b.StartsAt(s.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("booking %d: %w", b.ID, err)
	}

	now := s.now()
	withinWindow := !now.Before(startsAt.Add(-refundWindow))
	restore := b.IsFreeSession && !withinWindow

	if err := s.repo.Cancel(ctx, b.ID, now, restore); err != nil {
		return nil, err
	}

	result := &CancelResult{
		FreeSessionRestored:  restore,
		FreeSessionForfeited: b.IsFreeSession && withinWindow,
		RefundEligible:       b.IsPaid() && !withinWindow,
	}
	result.Message = cancelMessage(result, b.IsPaid())

	outcome := "unpaid"
	switch {
	case result.FreeSessionRestored:
		outcome = "free_restored"
	case result.FreeSessionForfeited:
		outcome = "free_forfeited"
	case result.RefundEligible:
		outcome = "refund_eligible"
	case b.IsPaid():
		outcome = "forfeited"
	}
	metrics.RecordBookingCancellation(outcome)
	logger.Info("Booking cancelled", "booking_id", b.ID, "by_admin", in.IsAdmin, "outcome", outcome)

	if b.MemberEmail != nil && b.MemberName != nil {
		notice := email.CancellationNotice{
			To:                   *b.MemberEmail,
			Name:                 *b.MemberName,
			ClassTitle:           b.ClassTitle,
			StartsAt:             startsAt,
			FreeSessionRestored:  result.FreeSessionRestored,
			FreeSessionForfeited: result.FreeSessionForfeited,
			RefundEligible:       result.RefundEligible,
		}
		s.dispatcher.Go("cancellation_email", func(ctx context.Context) error {
			return s.notifier.SendCancellation(ctx, notice)
		})
	}

	return result, nil
}

func cancelMessage(r *CancelResult, paid bool) string {
	switch {
	case r.FreeSessionRestored:
		return "Booking cancelled. Your free session is available to book again."
	case r.FreeSessionForfeited:
		return "Booking cancelled. As this was within an hour of the class, your free session has been used."
	case r.RefundEligible:
		return "Booking cancelled. You are eligible for a refund, which the gym will arrange."
	case paid:
		return "Booking cancelled. Cancellations within an hour of the class are not refunded."
	default:
		return "Booking cancelled."
	}
}

func (s *service) MarkCashPaid(ctx context.Context, id int) (*Booking, error) {
	existing, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusPendingCash {
		return nil, ErrNotPendingCash
	}

	b, err := s.repo.MarkCashPaid(ctx, id, s.now())
	if err != nil {
		return nil, err
	}

	metrics.RecordBooking(b.Status, b.PaymentMethod)
	logger.Info("Cash payment recorded", "booking_id", b.ID)

	return b, nil
}

func (s *service) GetMemberBookings(ctx context.Context, memberID int) ([]BookingWithDetails, error) {
	return s.repo.GetMemberBookings(ctx, memberID)
}

func (s *service) GetBookingsByClass(ctx context.Context, classID int) ([]BookingWithDetails, error) {
	if _, err := s.classes.GetByID(ctx, classID); err != nil {
		return nil, err
	}
	return s.repo.GetBookingsByClass(ctx, classID)
}

func (s *service) ListAll(ctx context.Context) ([]BookingWithDetails, error) {
	return s.repo.ListAll(ctx)
}

func (s *service) Analytics(ctx context.Context, from, to time.Time) (*Analytics, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}

	byDay, err := s.repo.StatsByDay(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byType, err := s.repo.StatsByClassType(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &Analytics{From: from, To: to, ByDay: byDay, ByClassType: byType}, nil
}
