package calendar

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	templates []ClassTemplate
	instances map[string]*ClassInstance
	nextID    int
}

func newFakeRepo(templates ...ClassTemplate) *fakeRepo {
	return &fakeRepo{templates: templates, instances: map[string]*ClassInstance{}}
}

func slotKey(date, start string) string { return date + " " + start }

func (f *fakeRepo) ListTemplates(ctx context.Context, activeOnly bool) ([]ClassTemplate, error) {
	var out []ClassTemplate
	for _, t := range f.templates {
		if !activeOnly || t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateTemplate(ctx context.Context, t *ClassTemplate) error {
	f.nextID++
	t.ID = f.nextID
	t.IsActive = true
	f.templates = append(f.templates, *t)
	return nil
}

func (f *fakeRepo) DeleteTemplate(ctx context.Context, id int) error {
	for i, t := range f.templates {
		if t.ID == id {
			f.templates = append(f.templates[:i], f.templates[i+1:]...)
			return nil
		}
	}
	return ErrTemplateNotFound
}

func (f *fakeRepo) InsertInstanceIfMissing(ctx context.Context, c *ClassInstance) (bool, error) {
	key := slotKey(c.Date(), c.StartTime)
	if _, ok := f.instances[key]; ok {
		return false, nil
	}
	f.nextID++
	cp := *c
	cp.ID = f.nextID
	f.instances[key] = &cp
	return true, nil
}

func (f *fakeRepo) CreateInstance(ctx context.Context, c *ClassInstance) error {
	created, _ := f.InsertInstanceIfMissing(ctx, c)
	if !created {
		return ErrClassExists
	}
	c.ID = f.nextID
	c.IsActive = true
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id int) (*ClassInstance, error) {
	for _, c := range f.instances {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrClassNotFound
}

func (f *fakeRepo) sorted(filter func(*ClassInstance) bool) []ClassInstance {
	var out []ClassInstance
	for _, c := range f.instances {
		if filter(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return slotKey(out[i].Date(), out[i].StartTime) < slotKey(out[j].Date(), out[j].StartTime)
	})
	return out
}

func (f *fakeRepo) ListBetween(ctx context.Context, from, to string, activeOnly bool) ([]ClassInstance, error) {
	return f.sorted(func(c *ClassInstance) bool {
		d := c.Date()
		return d >= from && d <= to && (!activeOnly || c.IsActive)
	}), nil
}

func (f *fakeRepo) ListAll(ctx context.Context) ([]ClassInstance, error) {
	return f.sorted(func(*ClassInstance) bool { return true }), nil
}

func (f *fakeRepo) UpdateInstance(ctx context.Context, c *ClassInstance) error {
	key := slotKey(c.Date(), c.StartTime)
	existing, ok := f.instances[key]
	if !ok {
		return ErrClassNotFound
	}
	if existing.BookedCount > c.Capacity {
		return ErrCapacityBelowBooked
	}
	cp := *c
	f.instances[key] = &cp
	return nil
}

func (f *fakeRepo) DeleteInstance(ctx context.Context, id int) error {
	for k, c := range f.instances {
		if c.ID == id {
			delete(f.instances, k)
			return nil
		}
	}
	return ErrClassNotFound
}

func boxingTemplates() []ClassTemplate {
	return []ClassTemplate{
		{ID: 1, Title: "Junior Boxing", ClassType: "junior", DayOfWeek: 1, StartTime: "17:30", DurationMinutes: 60, Capacity: 12, IsActive: true},
		{ID: 2, Title: "Boxing Fitness", ClassType: "fitness", DayOfWeek: 3, StartTime: "18:30", DurationMinutes: 60, IsActive: true},
		{ID: 3, Title: "Retired Class", ClassType: "old", DayOfWeek: 4, StartTime: "19:00", DurationMinutes: 60, Capacity: 8},
	}
}

func newTestService(repo Repository, now time.Time) *service {
	svc := NewService(repo, Options{
		Location:         time.UTC,
		Weeks:            4,
		PublicWindowDays: 14,
		DefaultCapacity:  10,
		PriceCents:       500,
	}).(*service)
	svc.now = func() time.Time { return now }
	return svc
}

func TestEnsureSchedule_GeneratesAndIsIdempotent(t *testing.T) {
	repo := newFakeRepo(boxingTemplates()...)
	svc := newTestService(repo, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))

	created, err := svc.EnsureSchedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, created, "two active templates for four weeks")

	created, err = svc.EnsureSchedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Len(t, repo.instances, 8)

	monday := repo.instances[slotKey("2026-10-19", "17:30")]
	require.NotNil(t, monday, "today counts when it matches")
	assert.Equal(t, 12, monday.Capacity)
	assert.Equal(t, int64(500), monday.PriceCents)
	require.NotNil(t, monday.TemplateID)
	assert.Equal(t, 1, *monday.TemplateID)

	wednesday := repo.instances[slotKey("2026-10-21", "18:30")]
	require.NotNil(t, wednesday)
	assert.Equal(t, 10, wednesday.Capacity, "default capacity when template has none")
}

func TestEnsureSchedule_DoesNotOverwriteExisting(t *testing.T) {
	repo := newFakeRepo(boxingTemplates()...)
	repo.instances[slotKey("2026-10-19", "17:30")] = &ClassInstance{
		ID: 99, Title: "Edited by coach", ClassDate: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		StartTime: "17:30", Capacity: 6, BookedCount: 3, IsActive: true,
	}
	svc := newTestService(repo, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))

	created, err := svc.EnsureSchedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, created)

	kept := repo.instances[slotKey("2026-10-19", "17:30")]
	assert.Equal(t, "Edited by coach", kept.Title)
	assert.Equal(t, 3, kept.BookedCount)
}

func TestListPublic_WindowAndAvailability(t *testing.T) {
	repo := newFakeRepo(boxingTemplates()...)
	svc := newTestService(repo, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	repo.instances[slotKey("2026-10-18", "10:00")] = &ClassInstance{
		ClassDate: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), StartTime: "10:00", Capacity: 10, IsActive: true,
	}

	classes, err := svc.ListPublic(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, classes)
	for _, c := range classes {
		assert.GreaterOrEqual(t, c.Date, "2026-10-19")
		assert.LessOrEqual(t, c.Date, "2026-11-02")
	}
	assert.Equal(t, "2026-10-19", classes[0].Date)
	assert.Equal(t, "5.00", classes[0].Price)
	assert.Equal(t, 12, classes[0].Available)
	assert.Len(t, classes, 5, "three Mondays and two Wednesdays within fourteen days")
}

func TestUpdateClass_CapacityBelowBooked(t *testing.T) {
	repo := newFakeRepo()
	repo.instances[slotKey("2026-10-19", "17:30")] = &ClassInstance{
		ID: 5, ClassDate: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), StartTime: "17:30", Capacity: 12, BookedCount: 6, IsActive: true,
	}
	svc := newTestService(repo, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))

	_, err := svc.UpdateClass(context.Background(), 5, UpdateClassRequest{Title: "Junior", ClassType: "junior", DurationMinutes: 60, Capacity: 5})
	assert.ErrorIs(t, err, ErrCapacityBelowBooked)

	inactive := false
	view, err := svc.UpdateClass(context.Background(), 5, UpdateClassRequest{Title: "Junior", ClassType: "junior", DurationMinutes: 60, Capacity: 6, IsActive: &inactive})
	require.NoError(t, err)
	assert.True(t, view.IsFull)
	assert.False(t, view.IsActive)

	_, err = svc.UpdateClass(context.Background(), 404, UpdateClassRequest{Capacity: 6})
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestCreateClass(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	req := CreateClassRequest{Title: "Open Mat", ClassType: "open", Date: "2026-10-24", StartTime: "12:00", DurationMinutes: 90}

	view, err := svc.CreateClass(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 10, view.Capacity)
	assert.Equal(t, "2026-10-24", view.Date)

	_, err = svc.CreateClass(context.Background(), req)
	assert.ErrorIs(t, err, ErrClassExists)

	req.Date = "24/10/2026"
	_, err = svc.CreateClass(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestCreateTemplate_DefaultCapacity(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, time.Now())
	day := 6

	tpl, err := svc.CreateTemplate(context.Background(), CreateTemplateRequest{Title: "Saturday", ClassType: "open", DayOfWeek: &day, StartTime: "10:00", DurationMinutes: 90})
	require.NoError(t, err)
	assert.Equal(t, 10, tpl.Capacity)
	assert.Equal(t, 6, tpl.DayOfWeek)
}
