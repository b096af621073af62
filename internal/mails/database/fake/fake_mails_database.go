package fake

import (
	"sync"

	"github.com/OliverSchlueter/smtpevent/internal/mails"
)

type DB struct {
	Mailboxes []mails.Mailbox
	Mails     map[string][]mails.Mail
	mu        sync.Mutex
}

func NewDB() *DB {
	return &DB{
		Mailboxes: []mails.Mailbox{},
		Mails:     make(map[string][]mails.Mail),
		mu:        sync.Mutex{},
	}
}

func (db *DB) GetMailboxes(userID string) ([]mails.Mailbox, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	userMailboxes := []mails.Mailbox{}
	for _, mailbox := range db.Mailboxes {
		if mailbox.UserID == userID {
			userMailboxes = append(userMailboxes, mailbox)
		}
	}
	return userMailboxes, nil
}

func (db *DB) GetMailboxByUID(userID string, uid uint32) (*mails.Mailbox, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.mailboxByUID(userID, uid)
}

// mailboxByUID expects db.mu to be held.
func (db *DB) mailboxByUID(userID string, uid uint32) (*mails.Mailbox, error) {
	for _, mailbox := range db.Mailboxes {
		if mailbox.UserID == userID && mailbox.UID == uid {
			return &mailbox, nil
		}
	}
	return nil, mails.ErrMailboxNotFound
}

func (db *DB) GetMailboxByName(userID string, name string) (*mails.Mailbox, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, mailbox := range db.Mailboxes {
		if mailbox.UserID == userID && mailbox.Name == name {
			return &mailbox, nil
		}
	}
	return nil, mails.ErrMailboxNotFound
}

func (db *DB) InsertMailbox(mailbox mails.Mailbox) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.Mailboxes {
		if existing.UserID == mailbox.UserID && (existing.Name == mailbox.Name || existing.UID == mailbox.UID) {
			return mails.ErrMailboxAlreadyExists
		}
	}

	if mailbox.UID == 0 {
		mailbox.UID = uint32(len(db.Mailboxes) + 1)
	}

	db.Mailboxes = append(db.Mailboxes, mailbox)
	return nil
}

func (db *DB) GetMails(userID string, mailboxUID uint32) ([]mails.Mail, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	userMails := []mails.Mail{}
	for _, mail := range db.Mails[userID] {
		if mail.MailboxUID == mailboxUID {
			userMails = append(userMails, mail)
		}
	}
	return userMails, nil
}

func (db *DB) GetMailByUID(userID string, mailboxUID uint32, uid uint32) (*mails.Mail, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	mb, err := db.mailboxByUID(userID, mailboxUID)
	if err != nil {
		return nil, err
	}

	for _, mail := range db.Mails[userID] {
		if mail.MailboxUID == mb.UID && mail.UID == uid {
			return &mail, nil
		}
	}

	return nil, mails.ErrMailNotFound
}

func (db *DB) InsertMail(userID string, mailboxUID uint32, mail mails.Mail) (uint32, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	mb, err := db.mailboxByUID(userID, mailboxUID)
	if err != nil {
		return 0, err
	}

	// UIDs ascend within a mailbox
	var next uint32 = 1
	for _, existing := range db.Mails[userID] {
		if existing.MailboxUID != mb.UID {
			continue
		}
		if mail.UID != 0 && existing.UID == mail.UID {
			return 0, mails.ErrMailAlreadyExists
		}
		if existing.UID >= next {
			next = existing.UID + 1
		}
	}

	if mail.UID == 0 {
		mail.UID = next
	}

	mail.MailboxUID = mb.UID
	db.Mails[userID] = append(db.Mails[userID], mail)
	return mail.UID, nil
}
