package calendar

import (
	"context"
	"database/sql"
	"errors"

	database "milltownabc/internal/db"

	"github.com/jmoiron/sqlx"
)

const (
	templateColumns = `id, title, description, class_type, day_of_week, start_time, duration_minutes,
		capacity, is_active, created_at`
	instanceColumns = `id, template_id, title, description, class_type, class_date, start_time,
		duration_minutes, capacity, booked_count, price_cents, is_active, created_at`
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListTemplates(ctx context.Context, activeOnly bool) ([]ClassTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM class_templates`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY day_of_week, start_time`

	templates := []ClassTemplate{}
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, err
	}

	return templates, nil
}

func (r *repository) CreateTemplate(ctx context.Context, t *ClassTemplate) error {
	query := `
		INSERT INTO class_templates (title, description, class_type, day_of_week, start_time, duration_minutes, capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, is_active, created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		t.Title, t.Description, t.ClassType, t.DayOfWeek, t.StartTime, t.DurationMinutes, t.Capacity,
	).Scan(&t.ID, &t.IsActive, &t.CreatedAt)
}

func (r *repository) DeleteTemplate(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM class_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrTemplateNotFound
	}

	return nil
}

// InsertInstanceIfMissing adds the occurrence unless one already exists at the
// same date and start time. It reports whether a row was created.
func (r *repository) InsertInstanceIfMissing(ctx context.Context, c *ClassInstance) (bool, error) {
	query := `
		INSERT INTO class_instances (template_id, title, description, class_type, class_date, start_time,
			duration_minutes, capacity, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (class_date, start_time) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		c.TemplateID, c.Title, c.Description, c.ClassType, c.Date(), c.StartTime,
		c.DurationMinutes, c.Capacity, c.PriceCents,
	)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (r *repository) CreateInstance(ctx context.Context, c *ClassInstance) error {
	query := `
		INSERT INTO class_instances (title, description, class_type, class_date, start_time,
			duration_minutes, capacity, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, booked_count, is_active, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		c.Title, c.Description, c.ClassType, c.Date(), c.StartTime,
		c.DurationMinutes, c.Capacity, c.PriceCents,
	).Scan(&c.ID, &c.BookedCount, &c.IsActive, &c.CreatedAt)
	if _, ok := database.UniqueViolation(err); ok {
		return ErrClassExists
	}

	return err
}

func (r *repository) GetByID(ctx context.Context, id int) (*ClassInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM class_instances WHERE id = $1`

	var c ClassInstance
	err := r.db.GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClassNotFound
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// ListBetween returns instances whose date lies in [from, to], both YYYY-MM-DD.
func (r *repository) ListBetween(ctx context.Context, from, to string, activeOnly bool) ([]ClassInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM class_instances WHERE class_date BETWEEN $1 AND $2`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY class_date, start_time`

	classes := []ClassInstance{}
	if err := r.db.SelectContext(ctx, &classes, query, from, to); err != nil {
		return nil, err
	}

	return classes, nil
}

func (r *repository) ListAll(ctx context.Context) ([]ClassInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM class_instances ORDER BY class_date, start_time`

	classes := []ClassInstance{}
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, err
	}

	return classes, nil
}

// UpdateInstance refuses to shrink capacity below the seats already taken.
func (r *repository) UpdateInstance(ctx context.Context, c *ClassInstance) error {
	query := `
		UPDATE class_instances
		SET title = $2, description = $3, class_type = $4, duration_minutes = $5, capacity = $6, is_active = $7
		WHERE id = $1 AND booked_count <= $6
		RETURNING booked_count
	`

	err := r.db.QueryRowxContext(ctx, query,
		c.ID, c.Title, c.Description, c.ClassType, c.DurationMinutes, c.Capacity, c.IsActive,
	).Scan(&c.BookedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCapacityBelowBooked
	}

	return err
}

func (r *repository) DeleteInstance(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM class_instances WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrClassNotFound
	}

	return nil
}
