package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/models"
)

// LoginRequest represents a credential pair.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries a freshly issued access token.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

func (h *Handler) issueToken(w http.ResponseWriter, user *models.User) {
	token, err := h.tokens.IssueToken(auth.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	h.JSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}

// Login authenticates a staff account.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.db.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil || !user.IsAdmin() || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.issueToken(w, user)
}

// ClientRegisterRequest represents the client signup body.
type ClientRegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ClientRegister creates a client account and signs it in.
func (h *Handler) ClientRegister(w http.ResponseWriter, r *http.Request) {
	var req ClientRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	username := sanitizeName(req.Username)
	if username == "" {
		h.Error(w, http.StatusBadRequest, "username is required")
		return
	}
	if len(req.Password) < 8 {
		h.Error(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}

	existing, err := h.db.GetUserByUsername(r.Context(), username)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if existing != nil {
		h.Error(w, http.StatusConflict, "username already taken")
		return
	}
	if req.Email != "" {
		existing, err = h.db.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "database error")
			return
		}
		if existing != nil {
			h.Error(w, http.StatusConflict, "email already registered")
			return
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := h.db.CreateUser(r.Context(), username, req.Email, hash, models.RoleClient)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	h.issueToken(w, user)
}

// ClientLogin authenticates a client account by username or email.
func (h *Handler) ClientLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := strings.TrimSpace(req.Username)
	user, err := h.db.GetUserByUsername(r.Context(), name)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil && strings.Contains(name, "@") {
		user, err = h.db.GetUserByEmail(r.Context(), name)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "database error")
			return
		}
	}
	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.issueToken(w, user)
}

// TelegramAuthRequest identifies a Telegram account forwarded by the bot
// gateway.
type TelegramAuthRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
}

// AuthTelegram signs in a client by Telegram id, creating the account on
// first contact. The id is trusted as-is: the endpoint is meant for the bot
// gateway, which has already identified the Telegram user.
func (h *Handler) AuthTelegram(w http.ResponseWriter, r *http.Request) {
	var req TelegramAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TelegramID <= 0 {
		h.Error(w, http.StatusBadRequest, "telegram_id is required")
		return
	}

	user, err := h.db.GetUserByTelegramID(r.Context(), req.TelegramID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	if user == nil {
		// Telegram accounts have no password; store an unguessable hash so
		// the password login paths can never match.
		hash, err := auth.HashPassword(uuid.NewString())
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to create account")
			return
		}

		username := sanitizeName(req.Username)
		if username == "" {
			username = fmt.Sprintf("user_%d", req.TelegramID)
		}
		user, err = h.db.CreateTelegramUser(r.Context(), username, req.TelegramID, hash)
		if err != nil {
			// Likely a username collision with an existing account.
			user, err = h.db.CreateTelegramUser(r.Context(), fmt.Sprintf("user_%d", req.TelegramID), req.TelegramID, hash)
			if err != nil {
				h.Error(w, http.StatusInternalServerError, "failed to create account")
				return
			}
		}
	}

	h.issueToken(w, user)
}
