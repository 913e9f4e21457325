package users

import (
	"context"
	"errors"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/todo-platform/task-api/internal/app/domain/user"
	"github.com/todo-platform/task-api/internal/app/storage"
	"github.com/todo-platform/task-api/internal/app/storage/memory"
)

func validInput() RegisterInput {
	return RegisterInput{
		Email:           "alice@example.com",
		Name:            "Alice",
		Password:        "correct horse",
		ConfirmPassword: "correct horse",
	}
}

func TestRegister(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	created, err := svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected id to be generated")
	}
	if !created.IsActive || created.IsStaff {
		t.Fatalf("unexpected flags: %+v", created)
	}
	if created.PasswordHash == "correct horse" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("correct horse")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	short := validInput()
	short.Password, short.ConfirmPassword = "short", "short"
	if _, err := svc.Register(ctx, short); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	mismatch := validInput()
	mismatch.ConfirmPassword = "something else"
	if _, err := svc.Register(ctx, mismatch); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}

	badEmail := validInput()
	badEmail.Email = "not-an-email"
	if _, err := svc.Register(ctx, badEmail); !errors.Is(err, user.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}

	shortName := validInput()
	shortName.Name = "A"
	if _, err := svc.Register(ctx, shortName); !errors.Is(err, user.ErrNameTooShort) {
		t.Fatalf("expected ErrNameTooShort, got %v", err)
	}

	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, validInput()); !errors.Is(err, storage.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	ctx := context.Background()

	registered, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := svc.Authenticate(ctx, "ALICE@example.com", "correct horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != registered.ID {
		t.Fatalf("wrong user returned: %+v", got)
	}

	if _, err := svc.Authenticate(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	registered.IsActive = false
	if _, err := store.UpdateUser(ctx, registered); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "alice@example.com", "correct horse"); !errors.Is(err, ErrUserDisabled) {
		t.Fatalf("expected ErrUserDisabled, got %v", err)
	}
}

// fakeCache records cache traffic for assertions.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]user.User
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]user.User{}}
}

func (c *fakeCache) GetUser(_ context.Context, email string) (user.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.entries[email]
	return u, ok
}

func (c *fakeCache) SetUser(_ context.Context, u user.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[u.Email] = u
}

func (c *fakeCache) DeleteUser(_ context.Context, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, email)
	c.deletes = append(c.deletes, email)
}

func TestAuthenticateUsesCache(t *testing.T) {
	cache := newFakeCache()
	svc := New(memory.New(), cache, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, ok := cache.entries["alice@example.com"]; !ok {
		t.Fatal("successful login not cached")
	}

	// Second login is served from cache.
	if _, err := svc.Authenticate(ctx, "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("cached authenticate: %v", err)
	}
}

func TestUpdateInvalidatesCache(t *testing.T) {
	cache := newFakeCache()
	svc := New(memory.New(), cache, nil)
	ctx := context.Background()

	created, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	newEmail := "alice@new.example.com"
	newPassword := "even longer password"
	updated, err := svc.Update(ctx, created.ID, UpdateInput{
		Email:           &newEmail,
		Password:        &newPassword,
		ConfirmPassword: &newPassword,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Email != newEmail {
		t.Fatalf("email not updated: %+v", updated)
	}
	if len(cache.deletes) == 0 {
		t.Fatal("cache was not invalidated")
	}

	if _, err := svc.Authenticate(ctx, newEmail, newPassword); err != nil {
		t.Fatalf("authenticate after password change: %v", err)
	}
	if _, err := svc.Authenticate(ctx, newEmail, "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
}
