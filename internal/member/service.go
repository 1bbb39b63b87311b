package member

import (
	"context"
	"errors"
	"strings"
	"time"

	"milltownabc/internal/auth"
	"milltownabc/internal/email"
	"milltownabc/internal/logger"

	"github.com/google/uuid"
)

const (
	captchaActionRegister = "register"
	passwordResetTTL      = time.Hour
)

type HumanVerifier interface {
	VerifyHuman(ctx context.Context, token, ip, action string) error
}

type Mailer interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest, clientIP string) (*Member, error)
	VerifyEmail(ctx context.Context, token string) (*Member, error)
	Login(ctx context.Context, req LoginRequest) (*Member, string, string, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, *Member, error)
	GetByID(ctx context.Context, id int) (*Member, error)
	UpdateProfile(ctx context.Context, id int, req UpdateProfileRequest) (*Member, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Delete(ctx context.Context, id int) error
	List(ctx context.Context) ([]Member, error)
	AdminUpdate(ctx context.Context, id int, req AdminUpdateRequest) (*Member, error)
}

type service struct {
	repo       Repository
	human      HumanVerifier
	mailer     Mailer
	dispatcher *email.Dispatcher
	jwtSecret  string
	now        func() time.Time
}

func NewService(repo Repository, human HumanVerifier, mailer Mailer, dispatcher *email.Dispatcher, jwtSecret string) Service {
	return &service{
		repo:       repo,
		human:      human,
		mailer:     mailer,
		dispatcher: dispatcher,
		jwtSecret:  jwtSecret,
		now:        time.Now,
	}
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func (s *service) Register(ctx context.Context, req RegisterRequest, clientIP string) (*Member, error) {
	if err := s.human.VerifyHuman(ctx, req.CaptchaToken, clientIP, captchaActionRegister); err != nil {
		return nil, err
	}

	req.Email = normalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	exists, err = s.repo.PhoneExists(ctx, req.Phone, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrPhoneExists
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	m := &Member{
		Name:                   strings.TrimSpace(req.Name),
		Email:                  req.Email,
		Phone:                  req.Phone,
		Age:                    req.Age,
		EmergencyContactName:   strings.TrimSpace(req.EmergencyContactName),
		EmergencyContactPhone:  strings.TrimSpace(req.EmergencyContactPhone),
		PasswordHash:           passwordHash,
		EmailVerificationToken: &token,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	logger.Info("Member registered", "member_id", m.ID)

	to, name := m.Email, m.Name
	s.dispatcher.Go("verification_email", func(ctx context.Context) error {
		return s.mailer.SendVerification(ctx, to, name, token)
	})

	return m, nil
}

func (s *service) VerifyEmail(ctx context.Context, token string) (*Member, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	m, err := s.repo.FindByVerificationToken(ctx, token)
	if errors.Is(err, ErrMemberNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkVerified(ctx, m.ID); err != nil {
		return nil, err
	}
	m.IsVerified = true
	m.EmailVerificationToken = nil

	return m, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*Member, string, string, error) {
	m, err := s.repo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, ErrMemberNotFound) {
			logger.Error("Login lookup failed", "error", err)
		}
		return nil, "", "", ErrInvalidCredentials
	}

	if !auth.CheckPassword(m.PasswordHash, req.Password) {
		return nil, "", "", ErrInvalidCredentials
	}

	if !m.IsVerified {
		return nil, "", "", ErrEmailNotVerified
	}

	accessToken, refreshToken, err := auth.GenerateTokens(
		m.ID,
		m.Email,
		auth.RoleFor(m.IsAdmin),
		s.jwtSecret,
		s.jwtSecret,
	)
	if err != nil {
		return nil, "", "", err
	}

	return m, accessToken, refreshToken, nil
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (string, *Member, error) {
	claims, err := auth.ParseRefreshToken(refreshToken, s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	m, err := s.repo.FindByID(ctx, claims.MemberID)
	if err != nil {
		return "", nil, err
	}

	accessToken, err := auth.GenerateAccessToken(m.ID, m.Email, auth.RoleFor(m.IsAdmin), s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	return accessToken, m, nil
}

func (s *service) GetByID(ctx context.Context, id int) (*Member, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) UpdateProfile(ctx context.Context, id int, req UpdateProfileRequest) (*Member, error) {
	req.Phone = strings.TrimSpace(req.Phone)
	req.Name = strings.TrimSpace(req.Name)

	exists, err := s.repo.PhoneExists(ctx, req.Phone, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrPhoneExists
	}

	return s.repo.UpdateProfile(ctx, id, req)
}

// RequestPasswordReset never reveals whether the address belongs to a member.
func (s *service) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	m, err := s.repo.FindByEmail(ctx, normalizeEmail(emailAddr))
	if errors.Is(err, ErrMemberNotFound) {
		logger.Debug("Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token := uuid.NewString()
	if err := s.repo.SetPasswordReset(ctx, m.ID, token, s.now().Add(passwordResetTTL)); err != nil {
		return err
	}

	to, name := m.Email, m.Name
	s.dispatcher.Go("password_reset_email", func(ctx context.Context) error {
		return s.mailer.SendPasswordReset(ctx, to, name, token)
	})

	return nil
}

func (s *service) ResetPassword(ctx context.Context, token, newPassword string) error {
	m, err := s.repo.FindByResetToken(ctx, token)
	if errors.Is(err, ErrMemberNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}

	if m.PasswordResetExpires == nil || !s.now().Before(*m.PasswordResetExpires) {
		return ErrInvalidToken
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.repo.ResetPassword(ctx, m.ID, passwordHash)
}

func (s *service) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("Member deleted and bookings anonymised", "member_id", id)
	return nil
}

func (s *service) List(ctx context.Context) ([]Member, error) {
	return s.repo.List(ctx)
}

func (s *service) AdminUpdate(ctx context.Context, id int, req AdminUpdateRequest) (*Member, error) {
	return s.repo.AdminUpdate(ctx, id, req)
}
