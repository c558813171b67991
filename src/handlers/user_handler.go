package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/config"
	"github.com/douglassdm/pulsefinance/backend/src/database"
	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/douglassdm/pulsefinance/backend/src/model"
	"github.com/douglassdm/pulsefinance/backend/src/security"
)

type contextKey string

const userIDContextKey contextKey = "userID"

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
var passwordRegex = regexp.MustCompile(`^.{6,}$`)

type UserHandler struct {
	authService *security.AuthService
}

func NewUserHandler(authService *security.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func sendJSON(w http.ResponseWriter, payload any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Error generating JSON response", "error", err)
	}
}

func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" {
		sendJSONError(w, "Username is required", http.StatusBadRequest)
		return
	}
	if !emailRegex.MatchString(req.Email) {
		sendJSONError(w, "Invalid email address", http.StatusBadRequest)
		return
	}
	if !passwordRegex.MatchString(req.Password) {
		sendJSONError(w, "Password must be at least 6 characters", http.StatusBadRequest)
		return
	}

	if _, err := model.GetUserByEmail(database.DB, req.Email); err == nil {
		sendJSONError(w, "An account with this email already exists", http.StatusConflict)
		return
	}
	if _, err := model.GetUserByUsername(database.DB, req.Username); err == nil {
		sendJSONError(w, "Username is already taken", http.StatusConflict)
		return
	}

	user := &model.User{Username: req.Username, Email: req.Email}
	if err := user.HashPassword(req.Password); err != nil {
		logger.L.Error("Failed to hash password during registration", "error", err)
		sendJSONError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}
	if err := user.CreateUser(database.DB); err != nil {
		logger.L.Error("Failed to create user", "username", req.Username, "error", err)
		sendJSONError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	logger.L.Info("User registered", "userID", user.ID, "username", user.Username)
	sendJSON(w, user, http.StatusCreated)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         *model.User `json:"user"`
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByUsername(database.DB, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Invalid username or password", http.StatusUnauthorized)
			return
		}
		logger.L.Error("Failed to look up user for login", "username", req.Username, "error", err)
		sendJSONError(w, "Login failed", http.StatusInternalServerError)
		return
	}

	if err := user.CheckPassword(req.Password); err != nil {
		logger.L.Warn("Password mismatch during login", "userID", user.ID)
		sendJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	resp, err := h.issueSession(user)
	if err != nil {
		logger.L.Error("Failed to issue session", "userID", user.ID, "error", err)
		sendJSONError(w, "Login failed", http.StatusInternalServerError)
		return
	}

	logger.L.Info("User logged in", "userID", user.ID)
	sendJSON(w, resp, http.StatusOK)
}

func (h *UserHandler) issueSession(user *model.User) (*TokenResponse, error) {
	accessToken, err := h.authService.GenerateToken(user.ID, config.Cfg.AccessTokenExpiry)
	if err != nil {
		return nil, err
	}
	refreshToken, err := security.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(config.Cfg.RefreshTokenExpiry)
	session := &model.Session{
		UserID:       user.ID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	if err := session.CreateSession(database.DB); err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *UserHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		sendJSONError(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	session, err := model.GetSessionByRefreshToken(database.DB, req.RefreshToken)
	if err != nil {
		sendJSONError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	user, err := model.GetUserByID(database.DB, session.UserID)
	if err != nil {
		logger.L.Error("User lookup failed during token refresh", "userID", session.UserID, "error", err)
		sendJSONError(w, "Invalid session", http.StatusUnauthorized)
		return
	}

	accessToken, err := h.authService.GenerateToken(user.ID, config.Cfg.AccessTokenExpiry)
	if err != nil {
		logger.L.Error("Failed to generate access token during refresh", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to refresh session", http.StatusInternalServerError)
		return
	}
	refreshToken, err := security.GenerateRefreshToken()
	if err != nil {
		logger.L.Error("Failed to generate refresh token during refresh", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to refresh session", http.StatusInternalServerError)
		return
	}

	expiresAt := time.Now().Add(config.Cfg.RefreshTokenExpiry)
	if err := session.UpdateSessionTokens(database.DB, accessToken, refreshToken, expiresAt); err != nil {
		logger.L.Error("Failed to rotate session tokens", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to refresh session", http.StatusInternalServerError)
		return
	}

	sendJSON(w, &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}, http.StatusOK)
}

func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		sendJSONError(w, "Authorization header required", http.StatusUnauthorized)
		return
	}

	if err := model.DeleteSessionByToken(database.DB, tokenString); err != nil {
		logger.L.Error("Failed to delete session on logout", "error", err)
		sendJSONError(w, "Logout failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
