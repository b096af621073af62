package users

import (
	"strings"

	"github.com/google/uuid"
)

type DB interface {
	GetByName(name string) (*User, error)
	GetByEmail(email string) (*User, error)
	Insert(user User) error
}

type Store struct {
	db DB
}

type Configuration struct {
	DB DB
}

func NewStore(config Configuration) *Store {
	return &Store{
		db: config.DB,
	}
}

func (s *Store) GetByName(name string) (*User, error) {
	return s.db.GetByName(name)
}

// GetByEmail finds the user owning email. Addresses compare case-insensitively.
func (s *Store) GetByEmail(email string) (*User, error) {
	return s.db.GetByEmail(strings.ToLower(email))
}

// Create assigns an ID and stores u. The primary email defaults to the first
// of u.Emails.
func (s *Store) Create(u User) (*User, error) {
	if u.Name == "" || (u.PrimaryEmail == "" && len(u.Emails) == 0) {
		return nil, ErrInvalidUser
	}

	u.ID = GenerateID()
	if u.PrimaryEmail == "" {
		u.PrimaryEmail = u.Emails[0]
	}
	u.PrimaryEmail = strings.ToLower(u.PrimaryEmail)

	emails := make([]string, 0, len(u.Emails))
	for _, email := range u.Emails {
		emails = append(emails, strings.ToLower(email))
	}
	u.Emails = emails

	if err := s.db.Insert(u); err != nil {
		return nil, err
	}
	return &u, nil
}

func GenerateID() string {
	return uuid.New().String()
}
