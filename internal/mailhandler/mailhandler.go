package mailhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/OliverSchlueter/goutils/problems"
	"github.com/OliverSchlueter/goutils/sloki"
	"github.com/OliverSchlueter/smtpevent/internal/mails"
	"github.com/OliverSchlueter/smtpevent/internal/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves read access to the mailboxes filled by the mailbox
// deliverer. Mailboxes are addressed by user name.
type Handler struct {
	mailStore *mails.Store
	userStore *users.Store
	gatherer  prometheus.Gatherer
}

type Configuration struct {
	Mails *mails.Store
	Users *users.Store
	// Gatherer is exposed on /metrics when set.
	Gatherer prometheus.Gatherer
}

func New(config Configuration) *Handler {
	return &Handler{
		mailStore: config.Mails,
		userStore: config.Users,
		gatherer:  config.Gatherer,
	}
}

func (h *Handler) Register(prefix string, mux *http.ServeMux) {
	mux.HandleFunc(prefix+"/mailboxes/{user_id}/", h.handleMailboxes)
	mux.HandleFunc(prefix+"/mailboxes/{user_id}/{mailbox}", h.handleMailbox)
	mux.HandleFunc(prefix+"/mailboxes/{user_id}/{mailbox}/mails", h.handleMails)
	mux.HandleFunc(prefix+"/mailboxes/{user_id}/{mailbox}/mails/{mail}", h.handleMail)

	if h.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

func (h *Handler) handleMailboxes(w http.ResponseWriter, r *http.Request) {
	userId := r.PathValue("user_id")

	switch r.Method {
	case http.MethodGet:
		h.getMailboxes(w, userId)
	default:
		problems.MethodNotAllowed(r.Method, []string{http.MethodGet}).WriteToHTTP(w)
	}
}

func (h *Handler) getMailboxes(w http.ResponseWriter, userId string) {
	if !h.userExists(w, userId) {
		return
	}

	// make sure a known user always has an INBOX
	if _, err := h.mailStore.GetMailboxByUID(userId, mails.DefaultMailboxUID); err != nil {
		problems.InternalServerError(err.Error()).WriteToHTTP(w)
		return
	}

	mailboxes, err := h.mailStore.GetMailboxes(userId)
	if err != nil {
		problems.InternalServerError(err.Error()).WriteToHTTP(w)
		return
	}

	writeJSON(w, mailboxes)
}

func (h *Handler) handleMailbox(w http.ResponseWriter, r *http.Request) {
	userId := r.PathValue("user_id")
	mailboxName := r.PathValue("mailbox")

	switch r.Method {
	case http.MethodGet:
		h.getMailbox(w, userId, mailboxName)
	default:
		problems.MethodNotAllowed(r.Method, []string{http.MethodGet}).WriteToHTTP(w)
	}
}

func (h *Handler) getMailbox(w http.ResponseWriter, userId string, mailboxName string) {
	mailbox, ok := h.mailbox(w, userId, mailboxName)
	if !ok {
		return
	}

	writeJSON(w, mailbox)
}

func (h *Handler) handleMails(w http.ResponseWriter, r *http.Request) {
	userId := r.PathValue("user_id")
	mailboxName := r.PathValue("mailbox")

	switch r.Method {
	case http.MethodGet:
		h.getMails(w, userId, mailboxName)
	default:
		problems.MethodNotAllowed(r.Method, []string{http.MethodGet}).WriteToHTTP(w)
	}
}

func (h *Handler) getMails(w http.ResponseWriter, userId string, mailboxName string) {
	mailbox, ok := h.mailbox(w, userId, mailboxName)
	if !ok {
		return
	}

	m, err := h.mailStore.GetMails(userId, mailbox.UID)
	if err != nil {
		problems.InternalServerError(err.Error()).WriteToHTTP(w)
		return
	}

	writeJSON(w, m)
}

func (h *Handler) handleMail(w http.ResponseWriter, r *http.Request) {
	userId := r.PathValue("user_id")
	mailboxName := r.PathValue("mailbox")
	mailUID := r.PathValue("mail")

	switch r.Method {
	case http.MethodGet:
		h.getMail(w, userId, mailboxName, mailUID)
	default:
		problems.MethodNotAllowed(r.Method, []string{http.MethodGet}).WriteToHTTP(w)
	}
}

func (h *Handler) getMail(w http.ResponseWriter, userId string, mailboxName string, mailUID string) {
	uid, err := strconv.ParseUint(mailUID, 10, 32)
	if err != nil {
		problems.ValidationError("Mail UID", "Invalid mail UID").WriteToHTTP(w)
		return
	}

	mailbox, ok := h.mailbox(w, userId, mailboxName)
	if !ok {
		return
	}

	mail, err := h.mailStore.GetMailByUID(userId, mailbox.UID, uint32(uid))
	if err != nil {
		problems.InternalServerError(err.Error()).WriteToHTTP(w)
		return
	}

	writeJSON(w, mail)
}

func (h *Handler) userExists(w http.ResponseWriter, userId string) bool {
	if _, err := h.userStore.GetByName(userId); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			problems.ValidationError("User", "Unknown user "+userId).WriteToHTTP(w)
			return false
		}
		problems.InternalServerError(err.Error()).WriteToHTTP(w)
		return false
	}
	return true
}

func (h *Handler) mailbox(w http.ResponseWriter, userId string, mailboxName string) (*mails.Mailbox, bool) {
	if !h.userExists(w, userId) {
		return nil, false
	}

	mailbox, err := h.mailStore.GetMailboxByName(userId, mailboxName)
	if err != nil {
		if errors.Is(err, mails.ErrMailboxNotFound) {
			problems.ValidationError("Mailbox", "Unknown mailbox "+mailboxName).WriteToHTTP(w)
			return nil, false
		}
		problems.InternalServerError(err.Error()).WriteToHTTP(w)
		return nil, false
	}
	return mailbox, true
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		problems.InternalServerError("Error marshalling response").WriteToHTTP(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("Failed to write response", sloki.WrapError(err))
	}
}
