package member

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"milltownabc/internal/auth"
	"milltownabc/internal/email"
	"milltownabc/internal/guard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, mem *Member) error {
	args := m.Called(ctx, mem)
	if args.Error(0) == nil {
		mem.ID = 1
	}
	return args.Error(0)
}

func (m *MockRepository) member(args mock.Arguments) (*Member, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Member), args.Error(1)
}

func (m *MockRepository) FindByID(ctx context.Context, id int) (*Member, error) {
	return m.member(m.Called(ctx, id))
}

func (m *MockRepository) FindByEmail(ctx context.Context, email string) (*Member, error) {
	return m.member(m.Called(ctx, email))
}

func (m *MockRepository) FindByVerificationToken(ctx context.Context, token string) (*Member, error) {
	return m.member(m.Called(ctx, token))
}

func (m *MockRepository) FindByResetToken(ctx context.Context, token string) (*Member, error) {
	return m.member(m.Called(ctx, token))
}

func (m *MockRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) PhoneExists(ctx context.Context, phone string, excludeID int) (bool, error) {
	args := m.Called(ctx, phone, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkVerified(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) UpdateProfile(ctx context.Context, id int, req UpdateProfileRequest) (*Member, error) {
	return m.member(m.Called(ctx, id, req))
}

func (m *MockRepository) SetPasswordReset(ctx context.Context, id int, token string, expires time.Time) error {
	return m.Called(ctx, id, token, expires).Error(0)
}

func (m *MockRepository) ResetPassword(ctx context.Context, id int, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockRepository) SetFreeSessionUsed(ctx context.Context, id int, used bool) error {
	return m.Called(ctx, id, used).Error(0)
}

func (m *MockRepository) List(ctx context.Context) ([]Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Member), args.Error(1)
}

func (m *MockRepository) AdminUpdate(ctx context.Context, id int, req AdminUpdateRequest) (*Member, error) {
	return m.member(m.Called(ctx, id, req))
}

func (m *MockRepository) Delete(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

type stubVerifier struct {
	err error
}

func (s stubVerifier) VerifyHuman(ctx context.Context, token, ip, action string) error {
	return s.err
}

type recordingMailer struct {
	mu     sync.Mutex
	verify []string
	resets []string
}

func (r *recordingMailer) SendVerification(ctx context.Context, to, name, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verify = append(r.verify, to+"|"+token)
	return nil
}

func (r *recordingMailer) SendPasswordReset(ctx context.Context, to, name, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, to+"|"+token)
	return nil
}

type fixture struct {
	repo       *MockRepository
	mailer     *recordingMailer
	dispatcher *email.Dispatcher
	svc        *service
}

func newFixture(verifyErr error) *fixture {
	f := &fixture{
		repo:       new(MockRepository),
		mailer:     &recordingMailer{},
		dispatcher: email.NewDispatcher(time.Second),
	}
	f.svc = NewService(f.repo, stubVerifier{err: verifyErr}, f.mailer, f.dispatcher, "test-secret").(*service)
	return f
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, f.dispatcher.Wait(context.Background()))
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Name:                  "Sam Boxer",
		Email:                 "Sam@Example.com",
		Phone:                 "+447700900123",
		Age:                   24,
		EmergencyContactName:  "Alex Boxer",
		EmergencyContactPhone: "+447700900456",
		Password:              "password123",
		CaptchaToken:          "token",
	}
}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name          string
		verifyErr     error
		setupMock     func(*MockRepository)
		expectedError error
	}{
		{
			name: "successful registration",
			setupMock: func(m *MockRepository) {
				m.On("EmailExists", mock.Anything, "sam@example.com").Return(false, nil)
				m.On("PhoneExists", mock.Anything, "+447700900123", 0).Return(false, nil)
				m.On("Create", mock.Anything, mock.MatchedBy(func(mem *Member) bool {
					return mem.Email == "sam@example.com" && !mem.IsVerified &&
						mem.EmailVerificationToken != nil && auth.CheckPassword(mem.PasswordHash, "password123")
				})).Return(nil)
			},
		},
		{
			name:          "captcha rejected",
			verifyErr:     guard.ErrCaptchaFailed,
			setupMock:     func(m *MockRepository) {},
			expectedError: guard.ErrCaptchaFailed,
		},
		{
			name: "email already exists",
			setupMock: func(m *MockRepository) {
				m.On("EmailExists", mock.Anything, "sam@example.com").Return(true, nil)
			},
			expectedError: ErrEmailExists,
		},
		{
			name: "phone already exists",
			setupMock: func(m *MockRepository) {
				m.On("EmailExists", mock.Anything, "sam@example.com").Return(false, nil)
				m.On("PhoneExists", mock.Anything, "+447700900123", 0).Return(true, nil)
			},
			expectedError: ErrPhoneExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.verifyErr)
			tt.setupMock(f.repo)

			m, err := f.svc.Register(context.Background(), validRegistration(), "203.0.113.7")
			f.drain(t)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, m)
				assert.Empty(t, f.mailer.verify)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 1, m.ID)
				require.Len(t, f.mailer.verify, 1)
				assert.Equal(t, "sam@example.com|"+*m.EmailVerificationToken, f.mailer.verify[0])
			}

			f.repo.AssertExpectations(t)
		})
	}
}

func TestService_VerifyEmail(t *testing.T) {
	f := newFixture(nil)
	token := "abc"
	f.repo.On("FindByVerificationToken", mock.Anything, "abc").Return(&Member{ID: 4, EmailVerificationToken: &token}, nil)
	f.repo.On("MarkVerified", mock.Anything, 4).Return(nil)
	f.repo.On("FindByVerificationToken", mock.Anything, "nope").Return(nil, ErrMemberNotFound)

	m, err := f.svc.VerifyEmail(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, m.IsVerified)

	_, err = f.svc.VerifyEmail(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.svc.VerifyEmail(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_Login(t *testing.T) {
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	tests := []struct {
		name          string
		member        *Member
		findErr       error
		password      string
		expectedError error
	}{
		{
			name:     "successful login",
			member:   &Member{ID: 1, Email: "sam@example.com", PasswordHash: hash, IsVerified: true},
			password: "password123",
		},
		{
			name:          "wrong password",
			member:        &Member{ID: 1, Email: "sam@example.com", PasswordHash: hash, IsVerified: true},
			password:      "wrong-password",
			expectedError: ErrInvalidCredentials,
		},
		{
			name:          "unknown member",
			findErr:       ErrMemberNotFound,
			password:      "password123",
			expectedError: ErrInvalidCredentials,
		},
		{
			name:          "unverified member",
			member:        &Member{ID: 1, Email: "sam@example.com", PasswordHash: hash},
			password:      "password123",
			expectedError: ErrEmailNotVerified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			if tt.member != nil {
				f.repo.On("FindByEmail", mock.Anything, "sam@example.com").Return(tt.member, nil)
			} else {
				f.repo.On("FindByEmail", mock.Anything, "sam@example.com").Return(nil, tt.findErr)
			}

			m, access, refresh, err := f.svc.Login(context.Background(), LoginRequest{Email: "SAM@example.com", Password: tt.password})
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, m)
				assert.Empty(t, access)
				assert.Empty(t, refresh)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, access)
			assert.NotEmpty(t, refresh)

			claims, err := auth.ValidateToken(access, "test-secret")
			require.NoError(t, err)
			assert.Equal(t, auth.RoleMember, claims.Role)
		})
	}
}

func TestService_AdminLoginGetsAdminRole(t *testing.T) {
	hash, _ := auth.HashPassword("password123")
	f := newFixture(nil)
	f.repo.On("FindByEmail", mock.Anything, "coach@example.com").
		Return(&Member{ID: 2, Email: "coach@example.com", PasswordHash: hash, IsVerified: true, IsAdmin: true}, nil)

	_, access, _, err := f.svc.Login(context.Background(), LoginRequest{Email: "coach@example.com", Password: "password123"})
	require.NoError(t, err)

	claims, err := auth.ValidateToken(access, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestService_RefreshToken(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("FindByID", mock.Anything, 3).Return(&Member{ID: 3, Email: "sam@example.com"}, nil)

	_, refresh, err := auth.GenerateTokens(3, "sam@example.com", auth.RoleMember, "test-secret", "test-secret")
	require.NoError(t, err)

	access, m, err := f.svc.RefreshToken(context.Background(), refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.Equal(t, 3, m.ID)

	_, _, err = f.svc.RefreshToken(context.Background(), access)
	assert.Error(t, err, "access tokens cannot be used to refresh")
}

func TestService_RequestPasswordReset(t *testing.T) {
	f := newFixture(nil)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	f.repo.On("FindByEmail", mock.Anything, "sam@example.com").Return(&Member{ID: 3, Email: "sam@example.com", Name: "Sam"}, nil)
	f.repo.On("SetPasswordReset", mock.Anything, 3, mock.AnythingOfType("string"), now.Add(time.Hour)).Return(nil)
	f.repo.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, ErrMemberNotFound)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "sam@example.com"))
	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
	f.drain(t)

	assert.Len(t, f.mailer.resets, 1)
	f.repo.AssertExpectations(t)
}

func TestService_ResetPassword(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	valid := now.Add(30 * time.Minute)
	expired := now.Add(-time.Minute)

	f := newFixture(nil)
	f.svc.now = func() time.Time { return now }
	f.repo.On("FindByResetToken", mock.Anything, "good").Return(&Member{ID: 3, PasswordResetExpires: &valid}, nil)
	f.repo.On("FindByResetToken", mock.Anything, "stale").Return(&Member{ID: 3, PasswordResetExpires: &expired}, nil)
	f.repo.On("FindByResetToken", mock.Anything, "unknown").Return(nil, ErrMemberNotFound)
	f.repo.On("ResetPassword", mock.Anything, 3, mock.MatchedBy(func(hash string) bool {
		return auth.CheckPassword(hash, "new-password")
	})).Return(nil).Once()

	require.NoError(t, f.svc.ResetPassword(context.Background(), "good", "new-password"))
	assert.ErrorIs(t, f.svc.ResetPassword(context.Background(), "stale", "new-password"), ErrInvalidToken)
	assert.ErrorIs(t, f.svc.ResetPassword(context.Background(), "unknown", "new-password"), ErrInvalidToken)
	f.repo.AssertExpectations(t)
}

func TestService_UpdateProfilePhoneTaken(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("PhoneExists", mock.Anything, "+447700900999", 3).Return(true, nil)

	_, err := f.svc.UpdateProfile(context.Background(), 3, UpdateProfileRequest{Phone: "+447700900999"})
	assert.ErrorIs(t, err, ErrPhoneExists)
}

func TestService_Delete(t *testing.T) {
	f := newFixture(nil)
	f.repo.On("Delete", mock.Anything, 3).Return(nil)
	f.repo.On("Delete", mock.Anything, 4).Return(errors.New("db down"))

	assert.NoError(t, f.svc.Delete(context.Background(), 3))
	assert.Error(t, f.svc.Delete(context.Background(), 4))
}
