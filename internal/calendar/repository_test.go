package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCalendarMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewRepository(sqlxDB), mock, func() { sqlxDB.Close() }
}

var instanceRowColumns = []string{
	"id", "template_id", "title", "description", "class_type", "class_date", "start_time",
	"duration_minutes", "capacity", "booked_count", "price_cents", "is_active", "created_at",
}

func instanceRow(id int, date time.Time, booked int) *sqlmock.Rows {
	return sqlmock.NewRows(instanceRowColumns).AddRow(
		id, 1, "Junior Boxing", "", "junior", date, "17:30", 60, 12, booked, 500, true, time.Now(),
	)
}

func TestInsertInstanceIfMissing(t *testing.T) {
	repo, mock, close := setupCalendarMock(t)
	defer close()

	templateID := 1
	c := &ClassInstance{
		TemplateID: &templateID, Title: "Junior Boxing", ClassType: "junior",
		ClassDate: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), StartTime: "17:30",
		DurationMinutes: 60, Capacity: 12, PriceCents: 500,
	}

	mock.ExpectExec("ON CONFLICT \\(class_date, start_time\\) DO NOTHING").
		WithArgs(sqlmock.AnyArg(), "Junior Boxing", "", "junior", "2026-10-19", "17:30", 60, 12, int64(500)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("ON CONFLICT").
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.InsertInstanceIfMissing(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.InsertInstanceIfMissing(context.Background(), c)
	require.NoError(t, err)
	assert.False(t, created)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInstance_Duplicate(t *testing.T) {
	repo, mock, close := setupCalendarMock(t)
	defer close()

	mock.ExpectQuery("INSERT INTO class_instances").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "class_instances_class_date_start_time_key"})

	err := repo.CreateInstance(context.Background(), &ClassInstance{
		Title: "Open Mat", ClassDate: time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC), StartTime: "12:00",
	})
	assert.ErrorIs(t, err, ErrClassExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID(t *testing.T) {
	repo, mock, close := setupCalendarMock(t)
	defer close()

	date := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM class_instances WHERE id").
		WithArgs(3).
		WillReturnRows(instanceRow(3, date, 4))
	mock.ExpectQuery("FROM class_instances WHERE id").
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(instanceRowColumns))

	c, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", c.Date())
	assert.Equal(t, 4, c.BookedCount)
	require.NotNil(t, c.TemplateID)

	_, err = repo.GetByID(context.Background(), 4)
	assert.ErrorIs(t, err, ErrClassNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBetween_ActiveOnly(t *testing.T) {
	repo, mock, close := setupCalendarMock(t)
	defer close()

	mock.ExpectQuery("WHERE class_date BETWEEN \\$1 AND \\$2 AND is_active ORDER BY").
		WithArgs("2026-10-19", "2026-11-02").
		WillReturnRows(instanceRow(1, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), 0))

	classes, err := repo.ListBetween(context.Background(), "2026-10-19", "2026-11-02", true)
	require.NoError(t, err)
	assert.Len(t, classes, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateInstance_CapacityGuard(t *testing.T) {
	repo, mock, close := setupCalendarMock(t)
	defer close()

	c := &ClassInstance{ID: 3, Title: "Junior Boxing", ClassType: "junior", DurationMinutes: 60, Capacity: 2, IsActive: true}

	mock.ExpectQuery("UPDATE class_instances").
		WithArgs(3, "Junior Boxing", "", "junior", 60, 2, true).
		WillReturnRows(sqlmock.NewRows([]string{"booked_count"}))

	err := repo.UpdateInstance(context.Background(), c)
	assert.ErrorIs(t, err, ErrCapacityBelowBooked)

	c.Capacity = 8
	mock.ExpectQuery("UPDATE class_instances").
		WithArgs(3, "Junior Boxing", "", "junior", 60, 8, true).
		WillReturnRows(sqlmock.NewRows([]string{"booked_count"}).AddRow(5))

	require.NoError(t, repo.UpdateInstance(context.Background(), c))
	assert.Equal(t, 5, c.BookedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTemplate_NotFound(t *testing.T) {
	repo, mock, close := setupCalendarMock(t)
	defer close()

	mock.ExpectExec("DELETE FROM class_templates").
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.DeleteTemplate(context.Background(), 9), ErrTemplateNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
