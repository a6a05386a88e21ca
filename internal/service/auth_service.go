package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"student-helpdesk/internal/config"
	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"
	"student-helpdesk/internal/utils"
	"student-helpdesk/internal/validate"
)

const minPasswordLen = 6

type AuthService struct {
	users          repository.UserRepository
	sessionSecret  string
	sessionTTL     time.Duration
	studentDomains []string
	adminDomains   []string
}

func NewAuthService(users repository.UserRepository, cfg config.Config) *AuthService {
	return &AuthService{
		users:          users,
		sessionSecret:  cfg.SessionSecret,
		sessionTTL:     cfg.SessionTTL,
		studentDomains: cfg.StudentDomains,
		adminDomains:   cfg.AdminDomains,
	}
}

// RoleForEmail derives the role from the address domain. The domain must match
// a configured domain exactly; "" means registration is refused.
func (a *AuthService) RoleForEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return ""
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range a.studentDomains {
		if domain == d {
			return models.RoleStudent
		}
	}
	for _, d := range a.adminDomains {
		if domain == d {
			return models.RoleAdmin
		}
	}
	return ""
}

func (a *AuthService) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	email, err := validate.Email(email)
	if err != nil {
		return nil, invalid("email", err)
	}
	name, err = validate.Required("name", name, 100)
	if err != nil {
		return nil, invalid("name", err)
	}
	if len(password) < minPasswordLen {
		return nil, &ValidationError{Field: "password", Msg: "password must be at least 6 characters"}
	}

	// Self-registration only; the role comes from the email domain.
	role := a.RoleForEmail(email)
	if role == "" {
		return nil, ErrEmailDomain
	}
	existing, _, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := a.users.Create(ctx, email, name, role, hash)
	if errors.Is(err, repository.ErrDuplicate) {
		// lost a race with a concurrent registration
		return nil, ErrEmailTaken
	}
	return u, err
}

func (a *AuthService) Login(ctx context.Context, email, password string) (token string, user *models.User, err error) {
	u, hash, err := a.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		return "", nil, ErrInvalidCredentials
	}
	if !utils.CheckPassword(hash, password) {
		return "", nil, ErrInvalidCredentials
	}
	if !u.Active {
		return "", nil, ErrInactiveUser
	}
	tok, err := utils.SignJWT(a.sessionSecret, u.ID, u.Role, u.Name, a.sessionTTL)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

func (a *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// VerifyPassword re-authenticates a signed-in user.
func (a *AuthService) VerifyPassword(ctx context.Context, userID, password string) error {
	hash, err := a.users.GetPasswordHash(ctx, userID)
	if err != nil {
		return err
	}
	if hash == "" {
		return ErrNotFound
	}
	if !utils.CheckPassword(hash, password) {
		return ErrInvalidCredentials
	}
	return nil
}

func (a *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := a.VerifyPassword(ctx, userID, current); err != nil {
		return err
	}
	if len(next) < minPasswordLen {
		return &ValidationError{Field: "password", Msg: "password must be at least 6 characters"}
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return err
	}
	return a.users.UpdatePasswordHash(ctx, userID, hash)
}
