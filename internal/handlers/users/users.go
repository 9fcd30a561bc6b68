package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"chemstock_system/internal/config"
	"chemstock_system/internal/handlers"
	"chemstock_system/internal/security"
)

type UserHandler struct {
	h *handlers.Handler
}

func NewUserHandler(h *handlers.Handler) *UserHandler {
	return &UserHandler{h: h}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionData struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Login verifies credentials against the stored Argon2id hash and
// issues an opaque session token kept in the cache with a TTL.
func (uh *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		config.RespondBadRequest(w, "Missing required fields", "username and password are required")
		return
	}

	var (
		userID       int64
		passwordHash string
		role         string
	)
	err := uh.h.Pool.QueryRow(r.Context(), `
		SELECT id, password_hash, role
		FROM users
		WHERE username = $1`, req.Username).Scan(&userID, &passwordHash, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Same response as a bad password: no username probing.
			config.RespondUnauthorized(w, "Invalid username or password")
			return
		}
		config.RespondInternalError(w, err, uh.h.Logger)
		return
	}

	ok, err := security.VerifyPassword(req.Password, passwordHash)
	if err != nil {
		config.RespondInternalError(w, fmt.Errorf("verify password: %w", err), uh.h.Logger)
		return
	}
	if !ok {
		uh.h.Logger.Warn("failed login attempt", "username", req.Username)
		config.RespondUnauthorized(w, "Invalid username or password")
		return
	}

	token := uuid.NewString()
	session, err := json.Marshal(sessionData{UserID: userID, Username: req.Username, Role: role})
	if err != nil {
		config.RespondInternalError(w, err, uh.h.Logger)
		return
	}
	if err := uh.h.Cache.Set(r.Context(), sessionKey(token), session, uh.h.Cfg.Auth.SessionTTL); err != nil {
		config.RespondInternalError(w, fmt.Errorf("store session: %w", err), uh.h.Logger)
		return
	}

	uh.h.Logger.Info("user logged in", "username", req.Username, "role", role)
	config.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"role":    role,
	})
}

// Logout revokes a session token.
func (uh *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		config.RespondBadRequest(w, "Missing token", "Authorization: Bearer <token> is required")
		return
	}

	if err := uh.h.Cache.Delete(r.Context(), sessionKey(token)); err != nil {
		config.RespondInternalError(w, err, uh.h.Logger)
		return
	}

	config.RespondSuccess(w, http.StatusOK, "Logged out", nil)
}

func sessionKey(token string) string {
	return "session:" + token
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
