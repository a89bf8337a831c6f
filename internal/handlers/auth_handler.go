package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fransoakusi/quickbill-360-sub009/utils"
)

// AuthHandler issues admin access tokens from the credentials configured
// for the assembly's revenue office. There is no self-service sign-up.
type AuthHandler struct {
	Tokens   *utils.Manager
	Username string
	Password string
	TokenTTL time.Duration
}

func NewAuthHandler(tokens *utils.Manager, username, password string) *AuthHandler {
	return &AuthHandler{Tokens: tokens, Username: username, Password: password, TokenTTL: 8 * time.Hour}
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	if h.Tokens == nil || h.Username == "" || h.Password == "" {
		errorJSON(w, http.StatusInternalServerError, "admin auth not configured")
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(req.Username)), []byte(h.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.Password)) == 1
	if !userOK || !passOK {
		errorJSON(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.Tokens.NewJWT(h.Username, "admin", h.TokenTTL)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "issue token: "+err.Error())
		return
	}
	refresh, err := h.Tokens.NewRefreshToken()
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "issue refresh token: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"access_token":  token,
		"refresh_token": refresh,
		"expires_in":    int(h.TokenTTL.Seconds()),
	})
}
