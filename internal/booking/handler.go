package booking

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"milltownabc/internal/api"
	"milltownabc/internal/auth"
	"milltownabc/internal/calendar"
	"milltownabc/internal/guard"
	"milltownabc/internal/logger"
	"milltownabc/internal/member"

	"github.com/gin-gonic/gin"
)

const defaultAnalyticsWindow = 30 * 24 * time.Hour

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func respondError(c *gin.Context, err error, fallback string) {
	var payErr *PaymentError
	switch {
	case errors.As(err, &payErr):
		c.JSON(http.StatusPaymentRequired, api.ErrorResponse{Error: payErr.Message})
	case errors.Is(err, ErrPaymentRequired):
		c.JSON(http.StatusPaymentRequired, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, calendar.ErrClassNotFound), errors.Is(err, member.ErrMemberNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrClassFull), errors.Is(err, ErrAlreadyBooked), errors.Is(err, ErrMaxBookings),
		errors.Is(err, ErrFreeSessionTaken), errors.Is(err, ErrAlreadyCancelled), errors.Is(err, ErrNotPendingCash):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrClassStarted), errors.Is(err, ErrClassUnavailable),
		errors.Is(err, ErrInvalidPeriod), errors.Is(err, ErrInvalidRange):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrNotOwner):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, guard.ErrCaptchaMissing):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, guard.ErrCaptchaFailed):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: err.Error()})
	default:
		logger.Error(fallback, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: fallback})
	}
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid " + name})
		return 0, false
	}
	return id, true
}

func currentMember(c *gin.Context) (int, bool) {
	memberID, ok := auth.GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Not authenticated"})
	}
	return memberID, ok
}

// BookClass godoc
// @Summary      Book a class
// @Description  The first session is free. Later sessions need a card token or pay_with_cash.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        classID  path      int                  true   "Class ID"
// @Param        request  body      booking.BookRequest  false  "Payment details"
// @Success      201      {object}  booking.BookResult
// @Failure      400      {object}  api.ErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Failure      402      {object}  api.ErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Failure      429      {object}  api.ErrorResponse
// @Router       /classes/{classID}/book [post]
func (h *Handler) BookClass(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}

	classID, ok := pathID(c, "classID")
	if !ok {
		return
	}

	var req BookRequest
	if c.Request.ContentLength != 0 && !api.BindJSON(c, &req) {
		return
	}

	result, err := h.service.BookClass(c.Request.Context(), BookInput{
		MemberID:     memberID,
		ClassID:      classID,
		PaymentToken: req.PaymentToken,
		PayWithCash:  req.PayWithCash,
		CaptchaToken: req.CaptchaToken,
		ClientIP:     c.ClientIP(),
	})
	if err != nil {
		respondError(c, err, "Booking failed, please try again")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListMyBookings godoc
// @Summary      List my bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   booking.BookingWithDetails
// @Failure      401  {object}  api.ErrorResponse
// @Router       /bookings [get]
func (h *Handler) ListMyBookings(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}

	bookings, err := h.service.GetMemberBookings(c.Request.Context(), memberID)
	if err != nil {
		respondError(c, err, "Failed to fetch bookings")
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// CancelBooking godoc
// @Summary      Cancel a booking
// @Description  Cancelling more than an hour before the class restores a free session or makes a paid one refundable.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  booking.CancelResult
// @Failure      403        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID}/cancel [post]
func (h *Handler) CancelBooking(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}

	bookingID, ok := pathID(c, "bookingID")
	if !ok {
		return
	}

	result, err := h.service.CancelBooking(c.Request.Context(), CancelInput{
		BookingID: bookingID,
		ActorID:   memberID,
		IsAdmin:   auth.IsAdmin(c),
	})
	if err != nil {
		respondError(c, err, "Failed to cancel booking")
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListAll godoc
// @Summary      List all bookings
// @Tags         admin,bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   booking.BookingWithDetails
// @Router       /admin/bookings [get]
func (h *Handler) ListAll(c *gin.Context) {
	bookings, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch bookings")
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// ClassBookings godoc
// @Summary      List bookings for a class
// @Tags         admin,bookings
// @Security     BearerAuth
// @Produce      json
// @Param        classID  path      int  true  "Class ID"
// @Success      200      {array}   booking.BookingWithDetails
// @Failure      404      {object}  api.ErrorResponse
// @Router       /admin/classes/{classID}/bookings [get]
func (h *Handler) ClassBookings(c *gin.Context) {
	classID, ok := pathID(c, "classID")
	if !ok {
		return
	}

	bookings, err := h.service.GetBookingsByClass(c.Request.Context(), classID)
	if err != nil {
		respondError(c, err, "Failed to fetch bookings")
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// MarkCashPaid godoc
// @Summary      Record a cash payment
// @Tags         admin,bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  booking.Booking
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Router       /admin/bookings/{bookingID}/cash-paid [post]
func (h *Handler) MarkCashPaid(c *gin.Context) {
	bookingID, ok := pathID(c, "bookingID")
	if !ok {
		return
	}

	b, err := h.service.MarkCashPaid(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err, "Failed to record cash payment")
		return
	}

	c.JSON(http.StatusOK, b)
}

// Export godoc
// @Summary      Export the booking ledger
// @Description  CSV rows with a running balance, followed by a summary block.
// @Tags         admin,bookings
// @Security     BearerAuth
// @Produce      text/csv
// @Param        period  query     string  false  "today, week, month, last-month, tax-year or all-time"  default(month)
// @Success      200     {string}  string
// @Failure      400     {object}  api.ErrorResponse
// @Router       /admin/bookings/export [get]
func (h *Handler) Export(c *gin.Context) {
	period := c.DefaultQuery("period", PeriodMonth)

	ledger, err := h.service.Ledger(c.Request.Context(), period)
	if err != nil {
		respondError(c, err, "Failed to export bookings")
		return
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, ledger); err != nil {
		respondError(c, err, "Failed to export bookings")
		return
	}

	filename := fmt.Sprintf("milltown-ledger-%s-%s.csv", period, time.Now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Analytics godoc
// @Summary      Booking analytics
// @Description  Bookings, cancellations and revenue by day and by class type. Defaults to the last 30 days.
// @Tags         admin,bookings
// @Security     BearerAuth
// @Produce      json
// @Param        from  query     string  false  "RFC3339 start"
// @Param        to    query     string  false  "RFC3339 end"
// @Success      200   {object}  booking.Analytics
// @Failure      400   {object}  api.ErrorResponse
// @Router       /admin/analytics/bookings [get]
func (h *Handler) Analytics(c *gin.Context) {
	to := time.Now()
	from := to.Add(-defaultAnalyticsWindow)

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, ErrInvalidRange, "")
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, ErrInvalidRange, "")
			return
		}
		to = parsed
	}

	stats, err := h.service.Analytics(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err, "Failed to load analytics")
		return
	}

	c.JSON(http.StatusOK, stats)
}
