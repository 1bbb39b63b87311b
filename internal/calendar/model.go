package calendar

import (
	"errors"
	"fmt"
	"time"

	"milltownabc/internal/api"

	"github.com/teambition/rrule-go"
)

const dateLayout = "2006-01-02"

var (
	ErrClassNotFound       = errors.New("class not found")
	ErrTemplateNotFound    = errors.New("class template not found")
	ErrClassExists         = errors.New("a class is already scheduled at that date and time")
	ErrCapacityBelowBooked = errors.New("capacity cannot be lower than the number of places already booked")
	ErrInvalidDate         = errors.New("date must be in YYYY-MM-DD format")
)

type ClassTemplate struct {
	ID              int       `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	ClassType       string    `db:"class_type" json:"class_type"`
	DayOfWeek       int       `db:"day_of_week" json:"day_of_week"`
	StartTime       string    `db:"start_time" json:"start_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Capacity        int       `db:"capacity" json:"capacity"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ClassInstance is one dated occurrence of a class.
type ClassInstance struct {
	ID              int       `db:"id" json:"id"`
	TemplateID      *int      `db:"template_id" json:"template_id,omitempty"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	ClassType       string    `db:"class_type" json:"class_type"`
	ClassDate       time.Time `db:"class_date" json:"-"`
	StartTime       string    `db:"start_time" json:"start_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Capacity        int       `db:"capacity" json:"capacity"`
	BookedCount     int       `db:"booked_count" json:"booked_count"`
	PriceCents      int64     `db:"price_cents" json:"price_cents"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// StartsAt combines the class date and wall-clock start time in loc.
func (c *ClassInstance) StartsAt(loc *time.Location) time.Time {
	var hour, minute int
	_, _ = fmt.Sscanf(c.StartTime, "%d:%d", &hour, &minute)
	return time.Date(c.ClassDate.Year(), c.ClassDate.Month(), c.ClassDate.Day(), hour, minute, 0, 0, loc)
}

func (c *ClassInstance) Date() string {
	return c.ClassDate.Format(dateLayout)
}

func (c *ClassInstance) IsFull() bool {
	return c.BookedCount >= c.Capacity
}

type ClassView struct {
	ClassInstance
	Date      string    `json:"date"`
	StartsAt  time.Time `json:"starts_at"`
	Available int       `json:"available"`
	IsFull    bool      `json:"is_full"`
	Price     string    `json:"price"`
}

func NewClassView(c ClassInstance, loc *time.Location) ClassView {
	available := c.Capacity - c.BookedCount
	if available < 0 {
		available = 0
	}
	return ClassView{
		ClassInstance: c,
		Date:          c.Date(),
		StartsAt:      c.StartsAt(loc),
		Available:     available,
		IsFull:        c.IsFull(),
		Price:         api.FormatPrice(c.PriceCents),
	}
}

type CreateTemplateRequest struct {
	Title           string `json:"title" binding:"required,max=255"`
	Description     string `json:"description"`
	ClassType       string `json:"class_type" binding:"required,max=64"`
	DayOfWeek       *int   `json:"day_of_week" binding:"required,min=0,max=6"`
	StartTime       string `json:"start_time" binding:"required,hhmm"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=15,max=240"`
	Capacity        int    `json:"capacity" binding:"omitempty,min=1,max=200"`
}

type CreateClassRequest struct {
	Title           string `json:"title" binding:"required,max=255"`
	Description     string `json:"description"`
	ClassType       string `json:"class_type" binding:"required,max=64"`
	Date            string `json:"date" binding:"required" example:"2026-11-02"`
	StartTime       string `json:"start_time" binding:"required,hhmm" example:"18:30"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=15,max=240"`
	Capacity        int    `json:"capacity" binding:"omitempty,min=1,max=200"`
}

type UpdateClassRequest struct {
	Title           string `json:"title" binding:"required,max=255"`
	Description     string `json:"description"`
	ClassType       string `json:"class_type" binding:"required,max=64"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=15,max=240"`
	Capacity        int    `json:"capacity" binding:"required,min=1,max=200"`
	IsActive        *bool  `json:"is_active"`
}

var weekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Occurrences returns the next n dates on or after day that fall on weekday
// (0 = Sunday). Only the calendar date of day is used.
func Occurrences(day time.Time, weekday, n int) ([]time.Time, error) {
	if weekday < 0 || weekday > 6 {
		return nil, fmt.Errorf("invalid weekday %d", weekday)
	}
	if n <= 0 {
		return nil, nil
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Count:     n,
		Byweekday: []rrule.Weekday{weekdays[weekday]},
		Dtstart:   time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return nil, err
	}

	return rule.All(), nil
}
