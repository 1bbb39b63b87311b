package member

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, m *Member) error
	FindByID(ctx context.Context, id int) (*Member, error)
	FindByEmail(ctx context.Context, email string) (*Member, error)
	FindByVerificationToken(ctx context.Context, token string) (*Member, error)
	FindByResetToken(ctx context.Context, token string) (*Member, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	PhoneExists(ctx context.Context, phone string, excludeID int) (bool, error)
	MarkVerified(ctx context.Context, id int) error
	UpdateProfile(ctx context.Context, id int, req UpdateProfileRequest) (*Member, error)
	SetPasswordReset(ctx context.Context, id int, token string, expires time.Time) error
	ResetPassword(ctx context.Context, id int, passwordHash string) error
	SetFreeSessionUsed(ctx context.Context, id int, used bool) error
	List(ctx context.Context) ([]Member, error)
	AdminUpdate(ctx context.Context, id int, req AdminUpdateRequest) (*Member, error)
	Delete(ctx context.Context, id int) error
}
