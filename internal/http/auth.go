package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cardfile/cardfile/internal/service"
	"github.com/cardfile/cardfile/pkg/httpx"
)

// minPasswordLength is enforced at the edge; the hasher takes anything.
const minPasswordLength = 6

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	Flows *service.AuthFlows
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	ResetCode   string `json:"reset_code"`
	NewPassword string `json:"new_password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// HandleSignup serves POST /api/auth/signup.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "name and email are required")
		return
	}
	if len(req.Password) < minPasswordLength {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "password must be at least 6 characters")
		return
	}

	user, err := h.Flows.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			httpx.WriteError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, newUserView(user))
}

// HandleLogin serves POST /api/auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.Flows.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		case errors.Is(err, service.ErrEmailNotConfirmed):
			httpx.WriteError(w, http.StatusForbidden, "email_not_confirmed", "confirm your email before logging in")
		default:
			writeInternalError(w, r, err)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pair)
}

// HandleRefresh serves POST /api/auth/refresh. The refresh token travels in
// the Authorization header, mirroring how the access token is presented.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	raw, ok := bearerToken(r)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_refresh_token", "missing bearer refresh token")
		return
	}

	pair, err := h.Flows.Refresh(r.Context(), raw)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_refresh_token", "refresh token is invalid, expired or superseded")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pair)
}

// HandleConfirm serves GET /api/auth/confirm/{token}.
func (h *AuthHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	already, err := h.Flows.ConfirmEmail(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidVerification) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_verification_token", "verification link is invalid or expired")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	msg := "email confirmed"
	if already {
		msg = "email is already confirmed"
	}
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: msg})
}

// HandleRequestConfirm serves POST /api/auth/request-confirm.
func (h *AuthHandler) HandleRequestConfirm(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	already, err := h.Flows.RequestEmailConfirmation(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "user_not_found", "no account with this email")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	if already {
		httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "email is already confirmed"})
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, messageResponse{Message: "confirmation email queued"})
}

// HandleRequestPasswordReset serves POST /api/auth/request-password-reset.
// The response never reveals whether the account exists.
func (h *AuthHandler) HandleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Flows.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeInternalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, messageResponse{
		Message: "if the account exists, a reset code has been sent",
	})
}

// HandleResetPassword serves POST /api/auth/reset-password.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "password must be at least 6 characters")
		return
	}

	err := h.Flows.ResetPassword(r.Context(), req.Email, req.ResetCode, req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrInvalidReset) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_reset", "reset code is invalid or expired")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}

// decodeJSON parses a JSON request body, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	return true
}
