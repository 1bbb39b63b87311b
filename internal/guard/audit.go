package guard

import (
	"sync"
	"time"
)

const (
	CategoryBookingLimit = "booking_rate_limit"
	CategorySignupLimit  = "signup_rate_limit"
	CategoryCaptcha      = "captcha_failed"
	CategoryPaymentVoid  = "payment_void"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	Category  string    `json:"category"`
	Detail    string    `json:"detail"`
}

// AuditLog is a fixed-size ring of security events. Oldest entries are overwritten.
type AuditLog struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
	now    func() time.Time
}

func NewAuditLog(size int) *AuditLog {
	if size <= 0 {
		size = 1000
	}
	return &AuditLog{events: make([]Event, size), now: time.Now}
}

func (a *AuditLog) Record(ip, category, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.events[a.next] = Event{
		Timestamp: a.now().UTC(),
		IP:        ip,
		Category:  category,
		Detail:    detail,
	}
	a.next = (a.next + 1) % len(a.events)
	if a.next == 0 {
		a.full = true
	}
}

// Snapshot returns the retained events, newest first.
func (a *AuditLog) Snapshot() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.next
	if a.full {
		n = len(a.events)
	}

	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (a.next - i + len(a.events)) % len(a.events)
		out = append(out, a.events[idx])
	}
	return out
}
