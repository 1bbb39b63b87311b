package member

import (
	"context"
	"database/sql"
	"errors"
	"time"

	database "milltownabc/internal/db"

	"github.com/jmoiron/sqlx"
)

const (
	memberColumns = `id, name, email, phone, age, emergency_contact_name, emergency_contact_phone,
		password_hash, email_verification_token, is_verified, password_reset_token, password_reset_expires,
		has_used_free_session, is_admin, created_at, updated_at`

	emailConstraint = "members_email_key"
	phoneConstraint = "members_phone_key"

	deletedMemberName = "Deleted Member"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO members (name, email, phone, age, emergency_contact_name, emergency_contact_phone,
			password_hash, email_verification_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		m.Name, m.Email, m.Phone, m.Age, m.EmergencyContactName, m.EmergencyContactPhone,
		m.PasswordHash, m.EmailVerificationToken,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return mapUniqueViolation(err)
	}

	return nil
}

func mapUniqueViolation(err error) error {
	constraint, ok := database.UniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case emailConstraint:
		return ErrEmailExists
	case phoneConstraint:
		return ErrPhoneExists
	}
	return err
}

func (r *repository) findOne(ctx context.Context, where string, arg interface{}) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE ` + where

	var m Member
	err := r.db.GetContext(ctx, &m, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func (r *repository) FindByID(ctx context.Context, id int) (*Member, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Member, error) {
	return r.findOne(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *repository) FindByVerificationToken(ctx context.Context, token string) (*Member, error) {
	return r.findOne(ctx, "email_verification_token = $1", token)
}

func (r *repository) FindByResetToken(ctx context.Context, token string) (*Member, error) {
	return r.findOne(ctx, "password_reset_token = $1", token)
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	return database.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM members WHERE LOWER(email) = LOWER($1))`, email)
}

func (r *repository) PhoneExists(ctx context.Context, phone string, excludeID int) (bool, error) {
	return database.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM members WHERE phone = $1 AND id <> $2)`, phone, excludeID)
}

func (r *repository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}

func (r *repository) MarkVerified(ctx context.Context, id int) error {
	return r.exec(ctx, `
		UPDATE members
		SET is_verified = TRUE, email_verification_token = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
}

func (r *repository) UpdateProfile(ctx context.Context, id int, req UpdateProfileRequest) (*Member, error) {
	query := `
		UPDATE members
		SET name = $2, phone = $3, age = $4, emergency_contact_name = $5, emergency_contact_phone = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + memberColumns

	var m Member
	err := r.db.GetContext(ctx, &m, query,
		id, req.Name, req.Phone, req.Age, req.EmergencyContactName, req.EmergencyContactPhone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, mapUniqueViolation(err)
	}

	return &m, nil
}

func (r *repository) SetPasswordReset(ctx context.Context, id int, token string, expires time.Time) error {
	return r.exec(ctx, `
		UPDATE members
		SET password_reset_token = $2, password_reset_expires = $3, updated_at = NOW()
		WHERE id = $1
	`, id, token, expires)
}

func (r *repository) ResetPassword(ctx context.Context, id int, passwordHash string) error {
	return r.exec(ctx, `
		UPDATE members
		SET password_hash = $2, password_reset_token = NULL, password_reset_expires = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, passwordHash)
}

func (r *repository) SetFreeSessionUsed(ctx context.Context, id int, used bool) error {
	return r.exec(ctx, `
		UPDATE members
		SET has_used_free_session = $2, updated_at = NOW()
		WHERE id = $1
	`, id, used)
}

func (r *repository) List(ctx context.Context) ([]Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY created_at DESC`

	members := []Member{}
	if err := r.db.SelectContext(ctx, &members, query); err != nil {
		return nil, err
	}

	return members, nil
}

func (r *repository) AdminUpdate(ctx context.Context, id int, req AdminUpdateRequest) (*Member, error) {
	query := `
		UPDATE members
		SET is_admin = COALESCE($2, is_admin),
			is_verified = COALESCE($3, is_verified),
			has_used_free_session = COALESCE($4, has_used_free_session),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + memberColumns

	var m Member
	err := r.db.GetContext(ctx, &m, query, id, req.IsAdmin, req.IsVerified, req.HasUsedFreeSession)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// Delete removes the member and anonymises their booking history in one
// transaction. Seats held by live bookings are released.
func (r *repository) Delete(ctx context.Context, id int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE class_instances ci
		SET booked_count = GREATEST(ci.booked_count - held.seats, 0)
		FROM (
			SELECT class_id, COUNT(*) AS seats
			FROM bookings
			WHERE member_id = $1 AND status <> 'cancelled'
			GROUP BY class_id
		) held
		WHERE ci.id = held.class_id
	`, id)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bookings
		SET member_deleted = TRUE, deleted_member_name = $2, member_id = NULL, status = 'cancelled'
		WHERE member_id = $1
	`, id, deletedMemberName)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return tx.Commit()
}
