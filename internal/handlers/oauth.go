package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"family-memory-backend/internal/oauth"
	"family-memory-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// OAuthHandler handles the federated-identity login and invite flow
type OAuthHandler struct {
	google        *oauth.GoogleClient
	userService   *services.UserService
	circleService *services.CircleService
	frontendURL   string
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(google *oauth.GoogleClient, userService *services.UserService, circleService *services.CircleService, frontendURL string) *OAuthHandler {
	return &OAuthHandler{
		google:        google,
		userService:   userService,
		circleService: circleService,
		frontendURL:   frontendURL,
	}
}

// GoogleLogin handles GET /api/v1/auth/google. An optional ?circle=ownerID
// query turns the login into a circle invite; the id travels in the OAuth
// state.
func (h *OAuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("circle")
	http.Redirect(w, r, h.google.AuthURL(ownerID), http.StatusTemporaryRedirect)
}

// GoogleCallback handles GET /api/v1/auth/google/callback. The provider's
// identity is mapped to a user record (created on first login). When the
// state carries an inviter, both relation sides are established with the
// fixed Viewer default: the provider link carries no role parameter.
func (h *OAuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident, ownerID, err := h.google.Exchange(ctx, r.URL.Query().Get("state"), r.URL.Query().Get("code"))
	if err != nil {
		log.Error().Err(err).Msg("OAuth exchange failed")
		http.Redirect(w, r, h.frontendURL+"/login?error=oauth_failed", http.StatusTemporaryRedirect)
		return
	}

	user, err := h.userService.FindOrCreateFederated(ctx, ident)
	if err != nil {
		log.Error().Err(err).Msg("Failed to map federated identity")
		http.Redirect(w, r, h.frontendURL+"/login?error=server_error", http.StatusTemporaryRedirect)
		return
	}

	if ownerID != "" {
		if err := h.circleService.EstablishRelation(ctx, ownerID, user.ID, ""); err != nil {
			// The login itself still succeeds; the invite leg is reported.
			log.Error().Err(err).
				Str("owner_id", ownerID).
				Str("user_id", user.ID).
				Msg("Failed to establish invited relation")
		}
	}

	token, err := h.userService.GenerateJWT(user.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token")
		http.Redirect(w, r, h.frontendURL+"/login?error=server_error", http.StatusTemporaryRedirect)
		return
	}

	redirect := fmt.Sprintf("%s/login?token=%s&email=%s&name=%s",
		h.frontendURL,
		url.QueryEscape(token),
		url.QueryEscape(user.Email),
		url.QueryEscape(user.Username),
	)
	http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)
}
