// Package users implements registration, authentication and profile
// management.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/todo-platform/task-api/internal/app/domain/user"
	"github.com/todo-platform/task-api/internal/app/storage"
	"github.com/todo-platform/task-api/internal/logging"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

var (
	// ErrPasswordMismatch means password and confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrPasswordTooShort means the password is under the minimum length.
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserDisabled means the account exists but is deactivated.
	ErrUserDisabled = errors.New("user account is disabled")
)

// Cache is the short-lived authenticated-user cache. A nil Cache disables
// caching.
type Cache interface {
	GetUser(ctx context.Context, email string) (user.User, bool)
	SetUser(ctx context.Context, u user.User)
	DeleteUser(ctx context.Context, email string)
}

// Service manages user accounts.
type Service struct {
	store storage.UserStore
	cache Cache
	log   *logging.Logger
}

// New builds the service. cache may be nil.
func New(store storage.UserStore, cache Cache, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("users")
	}
	return &Service{store: store, cache: cache, log: log}
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Register creates an active, non-staff account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	if err := validatePassword(in.Password, in.ConfirmPassword); err != nil {
		return user.User{}, err
	}

	u := user.User{
		Email:    user.NormalizeEmail(in.Email),
		Name:     in.Name,
		IsActive: true,
	}
	if err := u.Validate(); err != nil {
		return user.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	created, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}

	s.log.WithContext(ctx).WithField("user_id", created.ID).Info("user registered")
	return created, nil
}

// Authenticate checks credentials and returns the account. Successful
// lookups are cached briefly so token issuance under load does not hammer
// the users table.
func (s *Service) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	email = user.NormalizeEmail(email)
	if email == "" || password == "" {
		return user.User{}, ErrInvalidCredentials
	}

	u, cached := s.cachedUser(ctx, email)
	if !cached {
		var err error
		u, err = s.store.GetUserByEmail(ctx, email)
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, ErrInvalidCredentials
		} else if err != nil {
			return user.User{}, err
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return user.User{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return user.User{}, ErrUserDisabled
	}

	if !cached && s.cache != nil {
		s.cache.SetUser(ctx, u)
	}
	return u, nil
}

// Get returns the account by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// UpdateInput is the profile update payload. Nil fields are left unchanged.
type UpdateInput struct {
	Email           *string `json:"email"`
	Name            *string `json:"name"`
	Password        *string `json:"password"`
	ConfirmPassword *string `json:"confirm_password"`
}

// Update applies a partial profile update and invalidates the auth cache for
// both the old and (possibly changed) new email.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	oldEmail := u.Email

	if in.Email != nil {
		u.Email = user.NormalizeEmail(*in.Email)
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if err := u.Validate(); err != nil {
		return user.User{}, err
	}

	if in.Password != nil {
		confirm := ""
		if in.ConfirmPassword != nil {
			confirm = *in.ConfirmPassword
		}
		if err := validatePassword(*in.Password, confirm); err != nil {
			return user.User{}, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return user.User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}

	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}

	if s.cache != nil {
		s.cache.DeleteUser(ctx, oldEmail)
		if updated.Email != oldEmail {
			s.cache.DeleteUser(ctx, updated.Email)
		}
	}
	return updated, nil
}

func (s *Service) cachedUser(ctx context.Context, email string) (user.User, bool) {
	if s.cache == nil {
		return user.User{}, false
	}
	return s.cache.GetUser(ctx, email)
}

func validatePassword(password, confirm string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}
