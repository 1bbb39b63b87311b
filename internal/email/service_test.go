package email

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(rdb *redis.Client) *Service {
	london, _ := time.LoadLocation("Europe/London")
	svc := New(rdb, Config{
		From:     "bookings@milltownabc.co.uk",
		FromName: "Milltown ABC",
		SMTPHost: "smtp.test.com",
		SMTPPort: "587",
		BaseURL:  "https://milltownabc.co.uk/",
		Location: london,
	})
	svc.retryDelay = 0
	return svc
}

func encodeJob(t *testing.T, job EmailJob) string {
	t.Helper()
	data, err := json.Marshal(job)
	require.NoError(t, err)
	return string(data)
}

func TestSend(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.Regexp().ExpectLPush("emails", `.*`).SetVal(1)

	svc := newTestService(db)

	err := svc.Send(context.Background(), "member@example.com", "Member", "Hello", "Test body")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.Regexp().ExpectLPush("emails", `.*`).SetErr(assert.AnError)

	svc := newTestService(db)

	err := svc.Send(context.Background(), "member@example.com", "Member", "Hello", "Test body")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationsAreQueued(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()
	svc := newTestService(db)
	when := time.Date(2026, 10, 20, 17, 30, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		mock.Regexp().ExpectLPush("emails", `.*`).SetVal(int64(i + 1))
	}

	require.NoError(t, svc.SendBookingConfirmation(ctx, BookingNotice{To: "a@example.com", Name: "A", ClassTitle: "Junior Boxing", StartsAt: when, IsFreeSession: true}))
	require.NoError(t, svc.SendCancellation(ctx, CancellationNotice{To: "a@example.com", Name: "A", ClassTitle: "Junior Boxing", StartsAt: when}))
	require.NoError(t, svc.SendVerification(ctx, "a@example.com", "A", "tok"))
	require.NoError(t, svc.SendPasswordReset(ctx, "a@example.com", "A", "tok"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRenderBookingConfirmation(t *testing.T) {
	svc := newTestService(nil)
	when := time.Date(2026, 10, 20, 17, 30, 0, 0, time.UTC)

	subject, body := svc.renderBookingConfirmation(BookingNotice{Name: "Sam", ClassTitle: "Senior Boxing", StartsAt: when, Price: "5.00", PaymentMethod: "cash"})
	assert.Equal(t, "Booking confirmed - Senior Boxing", subject)
	assert.Contains(t, body, "Hi Sam")
	assert.Contains(t, body, "Please bring 5.00 in cash")
	assert.Contains(t, body, "Tue 20 Oct 2026 at 18:30")

	_, body = svc.renderBookingConfirmation(BookingNotice{Name: "Sam", ClassTitle: "Senior Boxing", StartsAt: when, IsFreeSession: true})
	assert.Contains(t, body, "free first session")

	_, body = svc.renderBookingConfirmation(BookingNotice{Name: "Sam", ClassTitle: "Senior Boxing", StartsAt: when, Price: "5.00", PaymentMethod: "card"})
	assert.Contains(t, body, "card has been charged 5.00")
}

func TestRenderCancellation(t *testing.T) {
	svc := newTestService(nil)

	_, body := svc.renderCancellation(CancellationNotice{Name: "Sam", ClassTitle: "Sparring", FreeSessionRestored: true})
	assert.Contains(t, body, "free session is available again")
	assert.NotContains(t, body, "refund")

	_, body = svc.renderCancellation(CancellationNotice{Name: "Sam", ClassTitle: "Sparring", FreeSessionForfeited: true})
	assert.Contains(t, body, "free session has been used")

	_, body = svc.renderCancellation(CancellationNotice{Name: "Sam", ClassTitle: "Sparring", RefundEligible: true})
	assert.Contains(t, body, "eligible for a refund")
}

func TestLink(t *testing.T) {
	svc := newTestService(nil)
	assert.Equal(t, "https://milltownabc.co.uk/auth/verify?token=a+b", svc.link("/auth/verify", "a b"))
}

func TestProcessNext_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := newTestService(db)

	var sent []EmailJob
	svc.send = func(job EmailJob) error {
		sent = append(sent, job)
		return nil
	}

	payload := encodeJob(t, EmailJob{Type: TypeVerification, To: "a@example.com", Subject: "Confirm"})
	mock.ExpectBRPop(2*time.Second, "emails").SetVal([]string{"emails", payload})

	svc.processNext(context.Background())

	require.Len(t, sent, 1)
	assert.Equal(t, 1, sent[0].Tries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_RetriesThenParks(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := newTestService(db)
	svc.send = func(job EmailJob) error { return errors.New("smtp down") }

	first := encodeJob(t, EmailJob{Type: TypeCancellation, To: "a@example.com"})
	mock.ExpectBRPop(2*time.Second, "emails").SetVal([]string{"emails", first})
	mock.Regexp().ExpectLPush("emails", `.*`).SetVal(1)
	svc.processNext(context.Background())

	last := encodeJob(t, EmailJob{Type: TypeCancellation, To: "a@example.com", Tries: 2})
	mock.ExpectBRPop(2*time.Second, "emails").SetVal([]string{"emails", last})
	mock.Regexp().ExpectLPush("emails:failed", `.*`).SetVal(1)
	svc.processNext(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueLength(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectLLen("emails").SetVal(5)

	svc := newTestService(db)

	length, err := svc.QueueLength(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), length)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartStopsOnCancel(t *testing.T) {
	db, _ := redismock.NewClientMock()
	svc := newTestService(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
