package auth

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/notify"
)

// Handlers exposes registration, login and token refresh.
type Handlers struct {
	Svc      *Service
	Validate *validator.Validate
	Welcome  *notify.Mailer
}

type userResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
}

func toUserResponse(u User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, Roles: u.Roles}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"displayName" validate:"max=200"`
	AsAuthor    bool   `json:"asAuthor"`
}

// Register serves POST /auth/register. Welcome email failures never fail the
// registration itself.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid registration payload", err.Error())
		return
	}
	u, err := h.Svc.Register(r.Context(), req.Email, req.Password, req.DisplayName, req.AsAuthor)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	h.Welcome.EnqueueWelcome(r.Context(), u.Email, u.DisplayName)
	common.JSON(w, http.StatusCreated, toUserResponse(u))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login serves POST /auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid login payload", err.Error())
		return
	}
	u, pair, err := h.Svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"user":         toUserResponse(u),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresAt":    pair.ExpiresAt,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Refresh serves POST /auth/refresh.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request", err.Error())
		return
	}
	u, pair, err := h.Svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"user":         toUserResponse(u),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresAt":    pair.ExpiresAt,
	})
}

// Logout serves POST /auth/logout. Always succeeds so clients can retry.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request", err.Error())
		return
	}
	if err := h.Svc.Logout(r.Context(), req.RefreshToken); err != nil {
		common.RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type forgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword serves POST /auth/password/forgot. The response never
// discloses whether the address has an account; email failures are logged
// and swallowed.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request", err.Error())
		return
	}
	u, token, err := h.Svc.StartPasswordReset(r.Context(), req.Email)
	if err == nil {
		h.Welcome.EnqueuePasswordReset(r.Context(), u.Email, token)
	}
	common.JSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type resetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

// ResetPassword serves POST /auth/password/reset.
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request", err.Error())
		return
	}
	if err := h.Svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// Me serves GET /auth/me.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	u, err := h.Svc.Q.GetByID(r.Context(), userID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, toUserResponse(u))
}
