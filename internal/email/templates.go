package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	signature = "- Milltown ABC"
	whenFmt   = "Mon 2 Jan 2006 at 15:04"
)

type BookingNotice struct {
	To            string
	Name          string
	ClassTitle    string
	StartsAt      time.Time
	Price         string
	IsFreeSession bool
	PaymentMethod string
}

type CancellationNotice struct {
	To                   string
	Name                 string
	ClassTitle           string
	StartsAt             time.Time
	FreeSessionRestored  bool
	FreeSessionForfeited bool
	RefundEligible       bool
}

func (s *Service) SendBookingConfirmation(ctx context.Context, n BookingNotice) error {
	subject, body := s.renderBookingConfirmation(n)
	return s.enqueue(ctx, TypeBookingConfirmation, n.To, n.Name, subject, body)
}

func (s *Service) SendCancellation(ctx context.Context, n CancellationNotice) error {
	subject, body := s.renderCancellation(n)
	return s.enqueue(ctx, TypeCancellation, n.To, n.Name, subject, body)
}

func (s *Service) SendVerification(ctx context.Context, to, name, token string) error {
	body := fmt.Sprintf(`Hi %s,

Welcome to Milltown ABC! Please confirm your email address by opening the link below:

%s

%s`, name, s.link("/auth/verify", token), signature)

	return s.enqueue(ctx, TypeVerification, to, name, "Confirm your email address", body)
}

func (s *Service) SendPasswordReset(ctx context.Context, to, name, token string) error {
	body := fmt.Sprintf(`Hi %s,

We received a request to reset your password. The link below is valid for one hour:

%s

If you didn't ask for this you can ignore this email.

%s`, name, s.link("/reset-password", token), signature)

	return s.enqueue(ctx, TypePasswordReset, to, name, "Reset your password", body)
}

func (s *Service) renderBookingConfirmation(n BookingNotice) (string, string) {
	var payment string
	switch {
	case n.IsFreeSession:
		payment = "This is your free first session, there is nothing to pay."
	case n.PaymentMethod == "cash":
		payment = fmt.Sprintf("Please bring %s in cash to pay at the door.", n.Price)
	default:
		payment = fmt.Sprintf("Your card has been charged %s.", n.Price)
	}

	body := fmt.Sprintf(`Hi %s,

You're booked in!

Class: %s
When: %s

%s

If you can't make it, please cancel at least one hour before the class starts.

%s`, n.Name, n.ClassTitle, s.localTime(n.StartsAt), payment, signature)

	return "Booking confirmed - " + n.ClassTitle, body
}

func (s *Service) renderCancellation(n CancellationNotice) (string, string) {
	var notes []string
	if n.FreeSessionRestored {
		notes = append(notes, "Your free session is available again for your next booking.")
	}
	if n.FreeSessionForfeited {
		notes = append(notes, "As this was cancelled within an hour of the class, your free session has been used.")
	}
	if n.RefundEligible {
		notes = append(notes, "You are eligible for a refund, which the club will process shortly.")
	}

	body := fmt.Sprintf(`Hi %s,

Your booking has been cancelled.

Class: %s
When: %s

%s

%s`, n.Name, n.ClassTitle, s.localTime(n.StartsAt), strings.Join(notes, "\n"), signature)

	return "Booking cancelled - " + n.ClassTitle, body
}

func (s *Service) link(path, token string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func (s *Service) localTime(t time.Time) string {
	return t.In(s.cfg.Location).Format(whenFmt)
}
