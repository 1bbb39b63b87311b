package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"milltownabc/internal/logger"
	"milltownabc/internal/metrics"
)

type Options struct {
	Location         *time.Location
	Weeks            int
	PublicWindowDays int
	DefaultCapacity  int
	PriceCents       int64
}

type Service interface {
	EnsureSchedule(ctx context.Context) (int, error)
	ListPublic(ctx context.Context) ([]ClassView, error)
	ListAll(ctx context.Context) ([]ClassView, error)
	GetClass(ctx context.Context, id int) (*ClassView, error)
	CreateClass(ctx context.Context, req CreateClassRequest) (*ClassView, error)
	UpdateClass(ctx context.Context, id int, req UpdateClassRequest) (*ClassView, error)
	DeleteClass(ctx context.Context, id int) error
	ListTemplates(ctx context.Context) ([]ClassTemplate, error)
	CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*ClassTemplate, error)
	DeleteTemplate(ctx context.Context, id int) error
}

type service struct {
	repo Repository
	opts Options
	now  func() time.Time
}

func NewService(repo Repository, opts Options) Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &service{
		repo: repo,
		opts: opts,
		now:  time.Now,
	}
}

func (s *service) today() time.Time {
	now := s.now().In(s.opts.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.opts.Location)
}

// EnsureSchedule fills the rolling window with occurrences of every active
// template. Existing instances are never touched, so it is safe to run often.
func (s *service) EnsureSchedule(ctx context.Context) (int, error) {
	templates, err := s.repo.ListTemplates(ctx, true)
	if err != nil {
		return 0, err
	}

	today := s.today()
	created := 0
	for _, t := range templates {
		dates, err := Occurrences(today, t.DayOfWeek, s.opts.Weeks)
		if err != nil {
			return created, fmt.Errorf("template %d: %w", t.ID, err)
		}

		capacity := t.Capacity
		if capacity <= 0 {
			capacity = s.opts.DefaultCapacity
		}

		for _, date := range dates {
			templateID := t.ID
			inserted, err := s.repo.InsertInstanceIfMissing(ctx, &ClassInstance{
				TemplateID:      &templateID,
				Title:           t.Title,
				Description:     t.Description,
				ClassType:       t.ClassType,
				ClassDate:       date,
				StartTime:       t.StartTime,
				DurationMinutes: t.DurationMinutes,
				Capacity:        capacity,
				PriceCents:      s.opts.PriceCents,
				IsActive:        true,
			})
			if err != nil {
				return created, err
			}
			if inserted {
				created++
			}
		}
	}

	metrics.RecordClassesGenerated(created)
	if created > 0 {
		logger.Info("Generated class instances", "count", created, "weeks", s.opts.Weeks)
	}

	return created, nil
}

func (s *service) views(classes []ClassInstance) []ClassView {
	out := make([]ClassView, 0, len(classes))
	for _, c := range classes {
		out = append(out, NewClassView(c, s.opts.Location))
	}
	return out
}

func (s *service) ListPublic(ctx context.Context) ([]ClassView, error) {
	if _, err := s.EnsureSchedule(ctx); err != nil {
		logger.Error("Failed to top up schedule", "error", err)
	}

	today := s.today()
	to := today.AddDate(0, 0, s.opts.PublicWindowDays)

	classes, err := s.repo.ListBetween(ctx, today.Format(dateLayout), to.Format(dateLayout), true)
	if err != nil {
		return nil, err
	}

	return s.views(classes), nil
}

func (s *service) ListAll(ctx context.Context) ([]ClassView, error) {
	classes, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(classes), nil
}

func (s *service) GetClass(ctx context.Context, id int) (*ClassView, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := NewClassView(*c, s.opts.Location)
	return &view, nil
}

func (s *service) CreateClass(ctx context.Context, req CreateClassRequest) (*ClassView, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}

	capacity := req.Capacity
	if capacity <= 0 {
		capacity = s.opts.DefaultCapacity
	}

	c := &ClassInstance{
		Title:           req.Title,
		Description:     req.Description,
		ClassType:       req.ClassType,
		ClassDate:       date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Capacity:        capacity,
		PriceCents:      s.opts.PriceCents,
	}
	if err := s.repo.CreateInstance(ctx, c); err != nil {
		return nil, err
	}

	view := NewClassView(*c, s.opts.Location)
	return &view, nil
}

func (s *service) UpdateClass(ctx context.Context, id int, req UpdateClassRequest) (*ClassView, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Capacity < c.BookedCount {
		return nil, ErrCapacityBelowBooked
	}

	c.Title = req.Title
	c.Description = req.Description
	c.ClassType = req.ClassType
	c.DurationMinutes = req.DurationMinutes
	c.Capacity = req.Capacity
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}

	if err := s.repo.UpdateInstance(ctx, c); err != nil {
		return nil, err
	}

	view := NewClassView(*c, s.opts.Location)
	return &view, nil
}

func (s *service) DeleteClass(ctx context.Context, id int) error {
	return s.repo.DeleteInstance(ctx, id)
}

func (s *service) ListTemplates(ctx context.Context) ([]ClassTemplate, error) {
	return s.repo.ListTemplates(ctx, false)
}

func (s *service) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*ClassTemplate, error) {
	if req.DayOfWeek == nil {
		return nil, errors.New("day_of_week is required")
	}

	capacity := req.Capacity
	if capacity <= 0 {
		capacity = s.opts.DefaultCapacity
	}

	t := &ClassTemplate{
		Title:           req.Title,
		Description:     req.Description,
		ClassType:       req.ClassType,
		DayOfWeek:       *req.DayOfWeek,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Capacity:        capacity,
	}
	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}

	return t, nil
}

func (s *service) DeleteTemplate(ctx context.Context, id int) error {
	return s.repo.DeleteTemplate(ctx, id)
}
