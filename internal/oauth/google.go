package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"family-memory-backend/internal/apperr"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Identity is what the provider asserts about a federated user
type Identity struct {
	ExternalID string
	Email      string
	Name       string
	PhotoURL   string
}

// stateTTL bounds how long an issued state stays redeemable. Abandoned
// logins are pruned on the next AuthURL call so the map cannot grow
// without bound.
const stateTTL = 10 * time.Minute

type pendingState struct {
	ownerID string
	expires time.Time
}

// GoogleClient drives the Google OAuth handshake. Pending states are held
// in memory and consumed on callback; a state may carry the inviting
// circle owner's id.
type GoogleClient struct {
	config oauth2.Config

	mu     sync.Mutex
	states map[string]pendingState
}

// NewGoogleClient creates a Google OAuth client
func NewGoogleClient(clientID, clientSecret, redirectURL string) *GoogleClient {
	return &GoogleClient{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		states: make(map[string]pendingState),
	}
}

// AuthURL returns the provider login URL. circleOwnerID may be empty for a
// plain federated login.
func (c *GoogleClient) AuthURL(circleOwnerID string) string {
	state := randToken()
	now := time.Now()

	c.mu.Lock()
	for s, p := range c.states {
		if now.After(p.expires) {
			delete(c.states, s)
		}
	}
	c.states[state] = pendingState{ownerID: circleOwnerID, expires: now.Add(stateTTL)}
	c.mu.Unlock()

	return c.config.AuthCodeURL(state)
}

// Exchange consumes the state, trades the code for a token and fetches the
// user's identity. It returns the circle owner id carried by the state.
func (c *GoogleClient) Exchange(ctx context.Context, state, code string) (Identity, string, error) {
	c.mu.Lock()
	pending, ok := c.states[state]
	delete(c.states, state)
	c.mu.Unlock()

	if !ok || time.Now().After(pending.expires) {
		return Identity{}, "", apperr.E(apperr.Unauthorized, "invalid oauth state")
	}
	ownerID := pending.ownerID

	tok, err := c.config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, "", fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	ident, err := c.userInfo(ctx, tok)
	if err != nil {
		return Identity{}, "", err
	}
	return ident, ownerID, nil
}

func (c *GoogleClient) userInfo(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	client := c.config.Client(ctx, tok)
	res, err := client.Get("https://www.googleapis.com/oauth2/v3/userinfo")
	if err != nil {
		return Identity{}, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer res.Body.Close()

	var info struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("failed to decode userinfo: %w", err)
	}

	return Identity{
		ExternalID: info.Sub,
		Email:      info.Email,
		Name:       info.Name,
		PhotoURL:   info.Picture,
	}, nil
}

func randToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
