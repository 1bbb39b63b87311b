package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "/auth/login", "200", 0.1)
	RecordHTTPRequest("POST", "/auth/login", "200", 0.2)
	RecordHTTPRequest("POST", "/auth/login", "401", 0.05)

	assert.Equal(t, float64(2), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/auth/login", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/auth/login", "401")))
	assert.Equal(t, 1, testutil.CollectAndCount(HTTPRequestDuration))
}

func TestRecordBooking(t *testing.T) {
	BookingsTotal.Reset()

	RecordBooking("confirmed", "card")
	RecordBooking("pending_cash", "cash")
	RecordBooking("confirmed", "")

	assert.Equal(t, float64(1), testutil.ToFloat64(BookingsTotal.WithLabelValues("confirmed", "card")))
	assert.Equal(t, float64(1), testutil.ToFloat64(BookingsTotal.WithLabelValues("pending_cash", "cash")))
	assert.Equal(t, float64(1), testutil.ToFloat64(BookingsTotal.WithLabelValues("confirmed", "free")))
}

func TestRecordBookingRejection(t *testing.T) {
	BookingRejectionsTotal.Reset()

	RecordBookingRejection("fully_booked")
	RecordBookingRejection("fully_booked")
	RecordBookingRejection("payment_required")

	assert.Equal(t, float64(2), testutil.ToFloat64(BookingRejectionsTotal.WithLabelValues("fully_booked")))
	assert.Equal(t, float64(1), testutil.ToFloat64(BookingRejectionsTotal.WithLabelValues("payment_required")))
}

func TestRecordBookingCancellation(t *testing.T) {
	BookingCancellationsTotal.Reset()

	RecordBookingCancellation("free_session_restored")
	RecordBookingCancellation("free_session_forfeited")
	RecordBookingCancellation("free_session_forfeited")

	assert.Equal(t, float64(1), testutil.ToFloat64(BookingCancellationsTotal.WithLabelValues("free_session_restored")))
	assert.Equal(t, float64(2), testutil.ToFloat64(BookingCancellationsTotal.WithLabelValues("free_session_forfeited")))
}

func TestRecordPayment(t *testing.T) {
	PaymentAttemptsTotal.Reset()

	RecordPayment("success", 0.8)
	RecordPayment("timeout", 20)

	assert.Equal(t, float64(1), testutil.ToFloat64(PaymentAttemptsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(PaymentAttemptsTotal.WithLabelValues("timeout")))
}

func TestGuardCounters(t *testing.T) {
	RateLimitTripsTotal.Reset()
	CaptchaFailuresTotal.Reset()

	RecordRateLimitTrip("booking")
	RecordRateLimitTrip("signup")
	RecordCaptchaFailure("register")

	assert.Equal(t, float64(1), testutil.ToFloat64(RateLimitTripsTotal.WithLabelValues("booking")))
	assert.Equal(t, float64(1), testutil.ToFloat64(RateLimitTripsTotal.WithLabelValues("signup")))
	assert.Equal(t, float64(1), testutil.ToFloat64(CaptchaFailuresTotal.WithLabelValues("register")))
}

func TestRecordEmail(t *testing.T) {
	EmailsSentTotal.Reset()

	RecordEmail("booking_confirmation", "success")
	RecordEmail("booking_confirmation", "failed")
	RecordEmail("verification", "success")

	assert.Equal(t, float64(1), testutil.ToFloat64(EmailsSentTotal.WithLabelValues("booking_confirmation", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(EmailsSentTotal.WithLabelValues("booking_confirmation", "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(EmailsSentTotal.WithLabelValues("verification", "success")))
}

func TestEmailQueueLength(t *testing.T) {
	SetEmailQueueLength(10)
	assert.Equal(t, float64(10), testutil.ToFloat64(EmailQueueLength))

	SetEmailQueueLength(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(EmailQueueLength))
}

func TestRecordClassesGenerated(t *testing.T) {
	before := testutil.ToFloat64(ClassesGeneratedTotal)

	RecordClassesGenerated(6)
	RecordClassesGenerated(0)

	assert.Equal(t, before+6, testutil.ToFloat64(ClassesGeneratedTotal))
}

func TestRecordBackgroundTask(t *testing.T) {
	BackgroundTasksTotal.Reset()

	RecordBackgroundTask("booking_confirmation", "ok")
	RecordBackgroundTask("booking_confirmation", "failed")

	assert.Equal(t, float64(1), testutil.ToFloat64(BackgroundTasksTotal.WithLabelValues("booking_confirmation", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(BackgroundTasksTotal.WithLabelValues("booking_confirmation", "failed")))
}
