package mails

import "errors"

type DB interface {
	GetMailboxes(userID string) ([]Mailbox, error)
	GetMailboxByUID(userID string, uid uint32) (*Mailbox, error)
	GetMailboxByName(userID string, name string) (*Mailbox, error)
	InsertMailbox(mailbox Mailbox) error

	GetMails(userID string, mailboxUID uint32) ([]Mail, error)
	GetMailByUID(userID string, mailboxUID uint32, uid uint32) (*Mail, error)
	InsertMail(userID string, mailboxUID uint32, mail Mail) (uint32, error)
}

type Store struct {
	db DB
}

type Configuration struct {
	DB DB
}

func NewStore(cfg Configuration) *Store {
	return &Store{
		db: cfg.DB,
	}
}

func (s *Store) GetMailboxes(userID string) ([]Mailbox, error) {
	return s.db.GetMailboxes(userID)
}

// GetMailboxByUID returns the mailbox with the given UID. The default mailbox
// is created on first access.
func (s *Store) GetMailboxByUID(userID string, uid uint32) (*Mailbox, error) {
	mb, err := s.db.GetMailboxByUID(userID, uid)
	if errors.Is(err, ErrMailboxNotFound) && uid == DefaultMailboxUID {
		return s.createDefaultMailbox(userID)
	}
	return mb, err
}

// GetMailboxByName returns the named mailbox. The default mailbox is created
// on first access.
func (s *Store) GetMailboxByName(userID string, name string) (*Mailbox, error) {
	mb, err := s.db.GetMailboxByName(userID, name)
	if errors.Is(err, ErrMailboxNotFound) && name == DefaultMailboxName {
		return s.createDefaultMailbox(userID)
	}
	return mb, err
}

func (s *Store) createDefaultMailbox(userID string) (*Mailbox, error) {
	mb := Mailbox{
		UserID: userID,
		Name:   DefaultMailboxName,
		UID:    DefaultMailboxUID,
		Flags:  []string{},
	}
	if err := s.db.InsertMailbox(mb); err != nil && !errors.Is(err, ErrMailboxAlreadyExists) {
		return nil, err
	}

	return &mb, nil
}

func (s *Store) GetMails(userID string, mailboxUID uint32) ([]Mail, error) {
	return s.db.GetMails(userID, mailboxUID)
}

func (s *Store) GetMailByUID(userID string, mailboxUID uint32, uid uint32) (*Mail, error) {
	return s.db.GetMailByUID(userID, mailboxUID, uid)
}

// CreateMail stores mail in the mailbox and returns the UID it was given.
func (s *Store) CreateMail(userID string, mailboxUID uint32, mail Mail) (uint32, error) {
	if _, err := s.GetMailboxByUID(userID, mailboxUID); err != nil {
		return 0, ErrMailboxNotFound
	}

	return s.db.InsertMail(userID, mailboxUID, mail)
}
