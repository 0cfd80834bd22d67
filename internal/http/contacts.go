package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cardfile/cardfile/internal/service"
	"github.com/cardfile/cardfile/pkg/httpx"
)

// ContactsHandler serves the /api/contacts endpoints. Every operation is
// scoped to the authenticated principal.
type ContactsHandler struct {
	Contacts *service.ContactService
}

// HandleList serves GET /api/contacts with optional ?q=, ?limit=, ?offset=.
func (h *ContactsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := PrincipalFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "missing principal")
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	contacts, err := h.Contacts.List(r.Context(), user.ID, q.Get("q"), limit, offset)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, newContactViews(contacts))
}

// HandleCreate serves POST /api/contacts.
func (h *ContactsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := PrincipalFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "missing principal")
		return
	}

	var in service.ContactInput
	if !decodeJSON(w, r, &in) {
		return
	}

	contact, err := h.Contacts.Create(r.Context(), user.ID, in)
	if err != nil {
		h.writeContactError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, newContactView(contact))
}

// HandleGet serves GET /api/contacts/{id}.
func (h *ContactsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := PrincipalFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "missing principal")
		return
	}

	contact, err := h.Contacts.Get(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		h.writeContactError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, newContactView(contact))
}

// HandleUpdate serves PUT /api/contacts/{id}. The full field set is replaced;
// there is no partial patch.
func (h *ContactsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := PrincipalFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "missing principal")
		return
	}

	var in service.ContactInput
	if !decodeJSON(w, r, &in) {
		return
	}

	contact, err := h.Contacts.Update(r.Context(), user.ID, r.PathValue("id"), in)
	if err != nil {
		h.writeContactError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, newContactView(contact))
}

// HandleDelete serves DELETE /api/contacts/{id}.
func (h *ContactsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := PrincipalFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "missing principal")
		return
	}

	if err := h.Contacts.Delete(r.Context(), user.ID, r.PathValue("id")); err != nil {
		h.writeContactError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleBirthdays serves GET /api/contacts/birthdays with optional ?days=.
func (h *ContactsHandler) HandleBirthdays(w http.ResponseWriter, r *http.Request) {
	user, ok := PrincipalFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "missing principal")
		return
	}

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	contacts, err := h.Contacts.UpcomingBirthdays(r.Context(), user.ID, days)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, newContactViews(contacts))
}

func (h *ContactsHandler) writeContactError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidContact):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_contact", "first name, last name, email and a YYYY-MM-DD birthday are required")
	case errors.Is(err, service.ErrContactExists):
		httpx.WriteError(w, http.StatusConflict, "contact_exists", "a contact with this email already exists")
	case errors.Is(err, service.ErrContactNotFound):
		httpx.WriteError(w, http.StatusNotFound, "contact_not_found", "no such contact")
	default:
		writeInternalError(w, r, err)
	}
}
