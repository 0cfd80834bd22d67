package http

import (
	"errors"
	"net/http"

	"github.com/cardfile/cardfile/internal/service"
	"github.com/cardfile/cardfile/pkg/httpx"
)

// UsersHandler serves the /api/users endpoints.
type UsersHandler struct {
	Users *service.UserService
}

// HandleMe serves GET /api/users/me.
func (h *UsersHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := PrincipalFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "missing principal")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newUserView(user))
}

// HandleAvatar serves PATCH /api/users/avatar. Expects a multipart form with
// a "file" part.
func (h *UsersHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := PrincipalFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "missing principal")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxAvatarSize+1024)
	if err := r.ParseMultipartForm(service.MaxAvatarSize); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "expected a multipart form with a file part")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "missing file part")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	url, err := h.Users.UploadAvatar(r.Context(), user, contentType, file, header.Size)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedImage):
			httpx.WriteError(w, http.StatusUnsupportedMediaType, "unsupported_image_type", "avatar must be png, jpeg or webp")
		case errors.Is(err, service.ErrImageTooLarge):
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "image_too_large", "avatar exceeds the size limit")
		default:
			writeInternalError(w, r, err)
		}
		return
	}

	user.AvatarURL = url
	httpx.WriteJSON(w, http.StatusOK, newUserView(user))
}
