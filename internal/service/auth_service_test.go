package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/internal/repository"
	appErrors "github.com/dmatch/dmatch-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail         *models.User
	existingEmails      map[string]bool
	created             []*models.User
	createErr           error
	userByID            *models.User
	findByEmailErr      error
	findByIDErr         error
	refreshTokens       map[string]*models.RefreshToken
	refreshTokenErr     error
	createRefreshErr    error
	revokeRefreshErr    error
	revokeUserTokensErr error
	updatePasswordErr   error
	auditLogs           []*models.AuditLog
	lastLoginUpdated    bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return m.existingEmails[email], nil
}

func (m *mockAuthRepo) Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "new-user"
	m.created = append(m.created, user)
	return nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return m.revokeUserTokensErr
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.refreshTokenErr != nil {
		return nil, m.refreshTokenErr
	}
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if m.revokeRefreshErr != nil {
		return m.revokeRefreshErr
	}
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type registrationProfilesStub struct {
	academies   []*models.AcademyProfile
	instructors []string
}

func (s *registrationProfilesStub) EnsureInstructorProfile(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.InstructorProfile, error) {
	s.instructors = append(s.instructors, userID)
	return &models.InstructorProfile{ID: "p-" + userID, UserID: userID}, nil
}

func (s *registrationProfilesStub) UpsertAcademyProfile(ctx context.Context, exec sqlx.ExtContext, profile *models.AcademyProfile) error {
	s.academies = append(s.academies, profile)
	return nil
}

func newTestAuthService(t *testing.T, repo *mockAuthRepo) (*AuthService, sqlmock.Sqlmock, *registrationProfilesStub) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	profiles := &registrationProfilesStub{}
	svc := NewAuthService(repository.NewTxManager(sqlx.NewDb(db, "sqlmock")), repo, profiles, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "dmatch-api",
	})
	return svc, mock, profiles
}

func TestAuthServiceRegisterAcademy(t *testing.T) {
	repo := &mockAuthRepo{}
	svc, mock, profiles := newTestAuthService(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:       "Studio@Example.com",
		Password:    "password123",
		Name:        "박지훈",
		Phone:       "01099998888",
		Role:        models.RoleAcademy,
		AcademyName: "Groove Studio",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "studio@example.com", res.User.Email)
	assert.Equal(t, models.VerificationNone, res.User.VerificationStatus)
	require.Len(t, repo.created, 1)
	assert.NotEqual(t, "password123", repo.created[0].PasswordHash)
	assert.True(t, repo.created[0].Active)
	require.Len(t, profiles.academies, 1)
	assert.Equal(t, "Groove Studio", profiles.academies[0].AcademyName)
	assert.Empty(t, profiles.instructors)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionRegister, repo.auditLogs[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthServiceRegisterInstructorCreatesProfile(t *testing.T) {
	repo := &mockAuthRepo{}
	svc, mock, profiles := newTestAuthService(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "dancer@example.com", Password: "password123", Name: "김민수", Phone: "01012345678", Role: models.RoleInstructor,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"new-user"}, profiles.instructors)
}

func TestAuthServiceRegisterRejectsTakenEmail(t *testing.T) {
	repo := &mockAuthRepo{existingEmails: map[string]bool{"dancer@example.com": true}}
	svc, _, _ := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "dancer@example.com", Password: "password123", Name: "김민수", Phone: "01012345678", Role: models.RoleInstructor,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmailTaken.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterDuplicateRace(t *testing.T) {
	repo := &mockAuthRepo{createErr: repository.ErrDuplicate}
	svc, mock, _ := newTestAuthService(t, repo)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "dancer@example.com", Password: "password123", Name: "김민수", Phone: "01012345678", Role: models.RoleInstructor,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmailTaken.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc, _, _ := newTestAuthService(t, &mockAuthRepo{})

	tests := []models.RegisterRequest{
		{Email: "a@example.com", Password: "password123", Name: "n", Phone: "01012345678", Role: models.RoleAdmin},
		{Email: "a@example.com", Password: "short", Name: "n", Phone: "01012345678", Role: models.RoleInstructor},
		{Email: "a@example.com", Password: "password123", Name: "n", Phone: "01012345678", Role: models.RoleAcademy},
	}
	for _, req := range tests {
		_, err := svc.Register(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestAuthServiceCheckEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t, &mockAuthRepo{existingEmails: map[string]bool{"taken@example.com": true}})

	res, err := svc.CheckEmail(context.Background(), " Taken@Example.com ")
	require.NoError(t, err)
	assert.False(t, res.Available)

	res, err = svc.CheckEmail(context.Background(), "free@example.com")
	require.NoError(t, err)
	assert.True(t, res.Available)

	_, err = svc.CheckEmail(context.Background(), "not-an-email")
	require.Error(t, err)
}

func TestAuthServiceMe(t *testing.T) {
	svc, _, _ := newTestAuthService(t, &mockAuthRepo{userByID: &models.User{ID: "u1", Email: "kim@example.com", Name: "김민수", Role: models.RoleInstructor}})

	info, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "김민수", info.Name)
	assert.Equal(t, models.RoleInstructor, info.Role)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: true, Role: models.RoleAcademy}}
	svc, _, _ := newTestAuthService(t, repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, repo.lastLoginUpdated)
	assert.NotEmpty(t, repo.refreshTokens)
	assert.Equal(t, "123", res.User.ID)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: true}}
	svc, _, _ := newTestAuthService(t, repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong-password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.refreshTokens)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: false}}
	svc, _, _ := newTestAuthService(t, repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceRefreshToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: make(map[string]*models.RefreshToken)}
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: "hash", Active: true, Role: models.RoleAdmin}
	repo.userByEmail = user
	repo.userByID = user
	token := &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens[token.Token] = token

	svc, _, _ := newTestAuthService(t, repo)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: "owner", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc, _, _ := newTestAuthService(t, repo)

	err := svc.Logout(context.Background(), "token", "intruder", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Logout(context.Background(), "token", "owner", models.LoginRequest{}))
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("old"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: string(oldHash), Active: true}}
	svc, _, _ := newTestAuthService(t, repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "old", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEqual(t, string(oldHash), repo.userByEmail.PasswordHash)
}

func TestValidateToken(t *testing.T) {
	repo := &mockAuthRepo{}
	svc, _, _ := newTestAuthService(t, repo)
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "dmatch-api", claims.Issuer)

	_, err = svc.ValidateToken(token + "x")
	require.Error(t, err)
}
