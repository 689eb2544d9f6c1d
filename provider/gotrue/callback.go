package gotrue

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/session"
)

// SessionFromCallbackURL completes a redirect-based flow (magic link, OAuth implicit
// grant or password recovery). Tokens are read from the URL fragment, or from the query
// when the fragment is empty. The user is fetched with the new access token, the session
// is stored and the returned event is broadcast: PASSWORD_RECOVERY for recovery links,
// SIGNED_IN otherwise.
func (c *Client) SessionFromCallbackURL(ctx context.Context, rawURL string) (*session.Session, goSession.AuthEvent, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}

	params, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if len(params) == 0 {
		params = u.Query()
	}

	if code := params.Get("error"); code != "" {
		status := http.StatusBadRequest
		if s, err := strconv.Atoi(params.Get("error_code")); err == nil && s >= 400 && s < 600 {
			status = s
		}
		return nil, "", &APIError{
			Status:  status,
			Code:    code,
			Message: firstNonEmpty(params.Get("error_description"), code),
		}
	}

	access := params.Get("access_token")
	refresh := params.Get("refresh_token")
	if access == "" || refresh == "" {
		return nil, "", fmt.Errorf("%w: access_token and refresh_token are required", ErrInvalidCallback)
	}
	expiresAt, _ := strconv.ParseInt(params.Get("expires_at"), 10, 64)
	expiresIn, _ := strconv.ParseInt(params.Get("expires_in"), 10, 64)

	user, err := c.GetUser(ctx, access)
	if err != nil {
		return nil, "", err
	}

	tokenType := params.Get("token_type")
	if tokenType == "" {
		tokenType = "bearer"
	}
	sess := &session.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenType,
		ExpiresAt:    expiry(c.now(), expiresAt, expiresIn),
		UserID:       user.ID,
		Email:        user.Email,
		Payload:      user.Raw,
	}

	event := goSession.EventSignedIn
	if params.Get("type") == "recovery" {
		event = goSession.EventPasswordRecovery
	}
	if _, err := c.persist(ctx, sess, event); err != nil {
		return nil, "", err
	}
	return sess, event, nil
}
