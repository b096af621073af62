package users_test

import (
	"errors"
	"testing"

	"github.com/OliverSchlueter/smtpevent/internal/users"
	"github.com/OliverSchlueter/smtpevent/internal/users/database/fake"
)

func TestCreate(t *testing.T) {
	store := users.NewStore(users.Configuration{DB: fake.NewDB()})

	u, err := store.Create(users.User{
		Name:   "oliver",
		Emails: []string{"Oliver@Localhost", "postmaster@localhost"},
	})
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if u.ID == "" {
		t.Error("Expected user ID to be set")
	}
	if u.PrimaryEmail != "oliver@localhost" {
		t.Errorf("Expected primary email oliver@localhost, got %s", u.PrimaryEmail)
	}

	if _, err := store.Create(users.User{Name: "oliver", Emails: []string{"x@localhost"}}); !errors.Is(err, users.ErrUserAlreadyExists) {
		t.Errorf("Expected ErrUserAlreadyExists, got %v", err)
	}
	if _, err := store.Create(users.User{Name: "nobody"}); !errors.Is(err, users.ErrInvalidUser) {
		t.Errorf("Expected ErrInvalidUser, got %v", err)
	}
}

func TestGetByEmail(t *testing.T) {
	store := users.NewStore(users.Configuration{DB: fake.NewDB()})
	if _, err := store.Create(users.User{Name: "oliver", Emails: []string{"oliver@localhost", "postmaster@localhost"}}); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	for _, email := range []string{"oliver@localhost", "POSTMASTER@localhost"} {
		u, err := store.GetByEmail(email)
		if err != nil {
			t.Errorf("Failed to find user by %s: %v", email, err)
			continue
		}
		if u.Name != "oliver" {
			t.Errorf("Expected user oliver, got %s", u.Name)
		}
	}

	if _, err := store.GetByEmail("peter@otherdomain.com"); !errors.Is(err, users.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
	if _, err := store.GetByName("peter"); !errors.Is(err, users.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
