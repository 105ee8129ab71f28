package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"quiz-proctor/internal/domain"
)

// refreshSkew is how close to expiry an access token may get before it is
// refreshed.
const refreshSkew = 30 * time.Second

type tokenPair struct {
	access    string
	refresh   string
	expiresAt time.Time
}

type authRequest struct {
	TelegramID int64  `json:"telegram_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

type authResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *userPayload `json:"user"`
}

type userPayload struct {
	ID            int64  `json:"id"`
	TelegramID    int64  `json:"telegram_id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	IsBlocked     bool   `json:"is_blocked"`
	BlockedReason string `json:"blocked_reason"`
}

// Authenticate gets or creates the candidate and remembers its tokens for
// later calls made on its behalf.
func (c *Client) Authenticate(ctx context.Context, telegramID int64, firstName, lastName string) (domain.Candidate, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "users/telegram_auth/", 0, authRequest{
		TelegramID: telegramID,
		FirstName:  firstName,
		LastName:   lastName,
	}, &resp)
	if err != nil {
		return domain.Candidate{}, err
	}
	if resp.User == nil {
		return domain.Candidate{}, domain.ErrCandidateNotFound
	}
	if resp.Access != "" {
		c.storeTokens(telegramID, resp.Access, resp.Refresh)
	}

	u := resp.User
	if u.TelegramID == 0 {
		u.TelegramID = telegramID
	}
	return domain.Candidate{
		ID:            u.ID,
		TelegramID:    u.TelegramID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		IsBlocked:     u.IsBlocked,
		BlockedReason: u.BlockedReason,
	}, nil
}

func (c *Client) storeTokens(telegramID int64, access, refresh string) {
	pair := &tokenPair{access: access, refresh: refresh, expiresAt: tokenExpiry(access)}
	c.mu.Lock()
	if prev, ok := c.tokens[telegramID]; ok && pair.refresh == "" {
		pair.refresh = prev.refresh
	}
	c.tokens[telegramID] = pair
	c.mu.Unlock()
}

// bearer returns a usable access token, refreshing it when it is about to
// expire. Failures degrade to the stale token; the API decides.
func (c *Client) bearer(ctx context.Context, telegramID int64) string {
	c.mu.Lock()
	pair, ok := c.tokens[telegramID]
	c.mu.Unlock()
	if !ok {
		return ""
	}
	if pair.expiresAt.IsZero() || c.now().Add(refreshSkew).Before(pair.expiresAt) || pair.refresh == "" {
		return pair.access
	}

	var resp struct {
		Access string `json:"access"`
	}
	err := c.do(ctx, http.MethodPost, "auth/refresh/", 0, map[string]string{"refresh": pair.refresh}, &resp)
	if err != nil || resp.Access == "" {
		log.Printf("api: refresh token for %d failed: %v", telegramID, err)
		return pair.access
	}
	c.storeTokens(telegramID, resp.Access, "")
	return resp.Access
}

// tokenExpiry reads the exp claim without verifying the signature; the API
// owns the signing key.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
