package guard

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"milltownabc/internal/api"
	"milltownabc/internal/logger"
	"milltownabc/internal/metrics"

	"github.com/gin-gonic/gin"
)

const (
	scopeBooking = "booking"
	scopeSignup  = "signup"
)

var (
	ErrBookingRateLimited = errors.New("too many booking attempts from this network today, please try again tomorrow")
	ErrSignupRateLimited  = errors.New("too many sign-ups from this network today, please try again tomorrow")
)

type Options struct {
	BookingsPerDay int
	SignupsPerDay  int
}

// Guard bundles the per-address limits, human verification and the audit trail.
type Guard struct {
	limiter *DailyLimiter
	captcha *CaptchaVerifier
	audit   *AuditLog
	opts    Options
}

func New(limiter *DailyLimiter, captcha *CaptchaVerifier, audit *AuditLog, opts Options) *Guard {
	return &Guard{
		limiter: limiter,
		captcha: captcha,
		audit:   audit,
		opts:    opts,
	}
}

func (g *Guard) AllowBooking(ctx context.Context, ip string) bool {
	return g.allow(ctx, scopeBooking, CategoryBookingLimit, ip, g.opts.BookingsPerDay)
}

func (g *Guard) AllowSignup(ctx context.Context, ip string) bool {
	return g.allow(ctx, scopeSignup, CategorySignupLimit, ip, g.opts.SignupsPerDay)
}

func (g *Guard) allow(ctx context.Context, scope, category, ip string, limit int) bool {
	ok, _ := g.limiter.Allow(ctx, scope, ip, limit)
	if ok {
		return true
	}

	metrics.RecordRateLimitTrip(scope)
	g.audit.Record(ip, category, fmt.Sprintf("daily limit of %d reached", limit))
	logger.Warn("Daily rate limit reached", "scope", scope, "ip", ip, "limit", limit)
	return false
}

// VerifyHuman checks a captcha token for the given action.
func (g *Guard) VerifyHuman(ctx context.Context, token, ip, action string) error {
	err := g.captcha.Verify(ctx, token, ip)
	if err == nil {
		return nil
	}

	metrics.RecordCaptchaFailure(action)
	g.audit.Record(ip, CategoryCaptcha, fmt.Sprintf("%s: %v", action, err))
	logger.Warn("Captcha verification failed", "action", action, "ip", ip, "error", err)

	if errors.Is(err, ErrCaptchaMissing) {
		return err
	}
	return ErrCaptchaFailed
}

// Record adds an event to the audit trail.
func (g *Guard) Record(ip, category, detail string) {
	g.audit.Record(ip, category, detail)
}

func (g *Guard) Events() []Event {
	return g.audit.Snapshot()
}

func (g *Guard) BookingLimit() gin.HandlerFunc {
	return g.middleware(g.AllowBooking, ErrBookingRateLimited)
}

func (g *Guard) SignupLimit() gin.HandlerFunc {
	return g.middleware(g.AllowSignup, ErrSignupRateLimited)
}

func (g *Guard) middleware(allow func(context.Context, string) bool, rejection error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allow(c.Request.Context(), c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, api.ErrorResponse{Error: rejection.Error()})
			return
		}
		c.Next()
	}
}
