// Package accounts handles signup, login and password changes.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/DeafMist/newsdesk/backend/internal/models"
	"github.com/DeafMist/newsdesk/backend/internal/store"
)

// Error codes returned to clients.
const (
	CodeEmailExists       = "Email Already Exist"
	CodeUserNotFound      = "user_does_not_exist"
	CodePasswordIncorrect = "password_is_incorrect"
)

// Error is a domain failure with a client-facing code.
type Error struct {
	Code string
}

func (e *Error) Error() string { return e.Code }

// Code extracts the domain code from err, if any.
func Code(err error) (string, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// Issuer mints a session token for a user id.
type Issuer interface {
	Issue(userID string) (string, error)
}

// Service manages user accounts.
type Service struct {
	users  store.UserStore
	tokens Issuer
	cost   int
	now    func() time.Time
}

// New builds a Service hashing with bcrypt.DefaultCost.
func New(users store.UserStore, tokens Issuer) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithHashCost overrides the bcrypt cost, mainly for tests.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// Signup creates an account. Emails compare case-insensitively.
func (s *Service) Signup(ctx context.Context, email, password string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.User{}, &Error{Code: CodeEmailExists}
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks the credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", s.lookupError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", &Error{Code: CodePasswordIncorrect}
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// User returns the account for id.
func (s *Service) User(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, s.lookupError(err)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) (models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, s.lookupError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return models.User{}, &Error{Code: CodePasswordIncorrect}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, id, string(hash)); err != nil {
		return models.User{}, s.lookupError(err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = s.now()
	return user, nil
}

func (s *Service) lookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &Error{Code: CodeUserNotFound}
	}
	return fmt.Errorf("load user: %w", err)
}
