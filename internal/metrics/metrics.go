package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milltown_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "milltown_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milltown_bookings_total",
			Help: "Total number of committed bookings",
		},
		[]string{"status", "payment_method"},
	)

	BookingRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milltown_booking_rejections_total",
			Help: "Booking attempts rejected, by reason",
		},
		[]string{"reason"},
	)

	BookingCancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milltown_booking_cancellations_total",
			Help: "Total number of booking cancellations, by free-session outcome",
		},
		[]string{"outcome"},
	)

	PaymentAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milltown_payment_attempts_total",
			Help: "Card payment attempts, by result",
		},
		[]string{"result"},
	)

	PaymentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "milltown_payment_duration_seconds",
			Help:    "Payment gateway call duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	RateLimitTripsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milltown_rate_limit_trips_total",
			Help: "Requests rejected by a rate limiter, by scope",
		},
		[]string{"scope"},
	)

	CaptchaFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milltown_captcha_failures_total",
			Help: "Human verification failures, by action",
		},
		[]string{"action"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milltown_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "milltown_email_queue_length",
			Help: "Current length of email queue",
		},
	)

	ClassesGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "milltown_classes_generated_total",
			Help: "Class instances created from weekly templates",
		},
	)

	BackgroundTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milltown_background_tasks_total",
			Help: "Detached background tasks, by name and result",
		},
		[]string{"task", "result"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(status, paymentMethod string) {
	if paymentMethod == "" {
		paymentMethod = "free"
	}
	BookingsTotal.WithLabelValues(status, paymentMethod).Inc()
}

func RecordBookingRejection(reason string) {
	BookingRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordBookingCancellation(outcome string) {
	BookingCancellationsTotal.WithLabelValues(outcome).Inc()
}

func RecordPayment(result string, seconds float64) {
	PaymentAttemptsTotal.WithLabelValues(result).Inc()
	PaymentDuration.Observe(seconds)
}

func RecordRateLimitTrip(scope string) {
	RateLimitTripsTotal.WithLabelValues(scope).Inc()
}

func RecordCaptchaFailure(action string) {
	CaptchaFailuresTotal.WithLabelValues(action).Inc()
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}

func SetEmailQueueLength(n int64) {
	EmailQueueLength.Set(float64(n))
}

func RecordClassesGenerated(n int) {
	ClassesGeneratedTotal.Add(float64(n))
}

func RecordBackgroundTask(task, result string) {
	BackgroundTasksTotal.WithLabelValues(task, result).Inc()
}
